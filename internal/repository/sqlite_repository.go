package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"lexipal/internal/models"
	"lexipal/internal/quiz"
	"lexipal/internal/utils"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore keeps sessions, the progress ledger and wallet bindings in a
// single SQLite file for the long-running stream worker.
type SQLiteStore struct {
	logger *logrus.Entry
	db     *sqlx.DB
	now    func() time.Time
}

var (
	_ utils.SessionRepository = (*SQLiteStore)(nil)
	_ utils.LedgerRepository  = (*SQLiteStore)(nil)
	_ utils.WalletRepository  = (*SQLiteStore)(nil)
)

// OpenSQLite connects to path (":memory:" is allowed) and creates the schema.
func OpenSQLite(logger *logrus.Entry, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		logger: logger,
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initializeSchema() error {
	statements := []struct {
		table string
		ddl   string
	}{
		{"quiz_sessions", `
			CREATE TABLE IF NOT EXISTS quiz_sessions (
				session_key TEXT PRIMARY KEY,
				state TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`},
		{"progress_claims", `
			CREATE TABLE IF NOT EXISTS progress_claims (
				claim_key TEXT PRIMARY KEY,
				user_address TEXT NOT NULL,
				goal_id TEXT NOT NULL,
				word TEXT NOT NULL,
				level INTEGER NOT NULL,
				status TEXT NOT NULL,
				tx_hash TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`},
		{"wallet_bindings", `
			CREATE TABLE IF NOT EXISTS wallet_bindings (
				user_id TEXT PRIMARY KEY,
				address TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`},
	}

	for _, st := range statements {
		if _, err := s.db.Exec(st.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", st.table, err)
		}
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_progress_claims_goal ON progress_claims (user_address, goal_id)`); err != nil {
		return fmt.Errorf("failed to create progress_claims index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, key string) (*quiz.State, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT state FROM quiz_sessions WHERE session_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz session: %w", err)
	}

	var state quiz.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quiz session: %w", err)
	}
	return &state, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, state *quiz.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal quiz session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quiz_sessions (session_key, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (session_key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		state.Key(), string(raw), state.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save quiz session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM quiz_sessions WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete quiz session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PurgeSessions(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quiz_sessions WHERE updated_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge quiz sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}
	if n > 0 {
		s.logger.WithField("purged", n).Info("Purged stale quiz sessions")
	}
	return int(n), nil
}

func (s *SQLiteStore) ClaimProgress(ctx context.Context, key models.ProgressKey) (*models.ProgressClaim, error) {
	claim := models.NewPendingClaim(key, s.now())
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_claims (claim_key, user_address, goal_id, word, level, status, tx_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)
		ON CONFLICT (claim_key) DO NOTHING`,
		key.String(), claim.User, claim.GoalID, claim.Word, claim.Level, string(claim.Status), claim.CreatedAt, claim.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to claim progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to claim progress: %w", err)
	}
	if n == 1 {
		return &claim, nil
	}

	var existing models.ProgressClaim
	err = s.db.GetContext(ctx, &existing, `
		SELECT user_address, goal_id, word, level, status, tx_hash, created_at, updated_at
		FROM progress_claims WHERE claim_key = ?`, key.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("progress claim %s was released concurrently", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress claim: %w", err)
	}
	return &existing, utils.ErrClaimExists
}

func (s *SQLiteStore) CompleteProgress(ctx context.Context, key models.ProgressKey, txHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE progress_claims SET status = ?, tx_hash = ?, updated_at = ?
		WHERE claim_key = ?`,
		string(models.ClaimDone), txHash, s.now(), key.String())
	if err != nil {
		return fmt.Errorf("failed to complete progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReleaseProgress(ctx context.Context, key models.ProgressKey) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM progress_claims WHERE claim_key = ? AND status = ?`,
		key.String(), string(models.ClaimPending))
	if err != nil {
		return fmt.Errorf("failed to release progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListProgress(ctx context.Context, user, goalID string) ([]models.ProgressClaim, error) {
	var claims []models.ProgressClaim
	err := s.db.SelectContext(ctx, &claims, `
		SELECT user_address, goal_id, word, level, status, tx_hash, created_at, updated_at
		FROM progress_claims
		WHERE user_address = ? AND goal_id = ?
		ORDER BY created_at ASC`,
		strings.ToLower(user), goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return claims, nil
}

func (s *SQLiteStore) GetWallet(ctx context.Context, userID string) (*models.WalletBinding, error) {
	var binding models.WalletBinding
	err := s.db.GetContext(ctx, &binding, `SELECT user_id, address, updated_at FROM wallet_bindings WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet binding: %w", err)
	}
	return &binding, nil
}

func (s *SQLiteStore) SaveWallet(ctx context.Context, userID, address string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_bindings (user_id, address, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET address = excluded.address, updated_at = excluded.updated_at`,
		userID, address, s.now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save wallet binding: %w", err)
	}
	return nil
}
