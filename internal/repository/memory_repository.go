package repository

import (
	"context"
	"lexipal/internal/models"
	"lexipal/internal/quiz"
	"lexipal/internal/utils"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process store. State is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*quiz.State
	claims   map[string]models.ProgressClaim
	wallets  map[string]models.WalletBinding
	now      func() time.Time
}

var (
	_ utils.SessionRepository = (*MemoryStore)(nil)
	_ utils.LedgerRepository  = (*MemoryStore)(nil)
	_ utils.WalletRepository  = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*quiz.State),
		claims:   make(map[string]models.ProgressClaim),
		wallets:  make(map[string]models.WalletBinding),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) GetSession(_ context.Context, key string) (*quiz.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) SaveSession(_ context.Context, state *quiz.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.Key()] = state.Clone()
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

func (m *MemoryStore) PurgeSessions(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(olderThan) {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) ClaimProgress(_ context.Context, key models.ProgressKey) (*models.ProgressClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.claims[key.String()]; ok {
		return &existing, utils.ErrClaimExists
	}
	claim := models.NewPendingClaim(key, m.now())
	m.claims[key.String()] = claim
	return &claim, nil
}

func (m *MemoryStore) CompleteProgress(_ context.Context, key models.ProgressKey, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[key.String()]
	if !ok {
		claim = models.NewPendingClaim(key, m.now())
	}
	claim.Status = models.ClaimDone
	claim.TxHash = txHash
	claim.UpdatedAt = m.now()
	m.claims[key.String()] = claim
	return nil
}

func (m *MemoryStore) ReleaseProgress(_ context.Context, key models.ProgressKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if claim, ok := m.claims[key.String()]; ok && claim.Status == models.ClaimPending {
		delete(m.claims, key.String())
	}
	return nil
}

func (m *MemoryStore) ListProgress(_ context.Context, user, goalID string) ([]models.ProgressClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user = strings.ToLower(user)
	var claims []models.ProgressClaim
	for _, c := range m.claims {
		if c.User == user && c.GoalID == goalID {
			claims = append(claims, c)
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].Key().Step() < claims[j].Key().Step()
	})
	return claims, nil
}

func (m *MemoryStore) GetWallet(_ context.Context, userID string) (*models.WalletBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MemoryStore) SaveWallet(_ context.Context, userID, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[userID] = models.WalletBinding{
		UserID:    userID,
		Address:   address,
		UpdatedAt: m.now().Format(time.RFC3339),
	}
	return nil
}
