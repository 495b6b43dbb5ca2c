package agent

import (
	"lexipal/internal/utils"
	"sync"
)

const DefaultHistoryTurns = 10

// History keeps the last few assistant turns per conversation.
type History struct {
	mu    sync.Mutex
	turns map[string][]utils.ChatTurn
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryTurns
	}
	return &History{
		turns: make(map[string][]utils.ChatTurn),
		limit: limit,
	}
}

func (h *History) Get(conversationID string) []utils.ChatTurn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]utils.ChatTurn(nil), h.turns[conversationID]...)
}

// Append adds one exchange and drops the oldest turns beyond the limit.
func (h *History) Append(conversationID, input, reply string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := append(h.turns[conversationID],
		utils.ChatTurn{Role: utils.RoleUser, Content: input},
		utils.ChatTurn{Role: utils.RoleAssistant, Content: reply},
	)
	if len(turns) > h.limit {
		turns = append([]utils.ChatTurn(nil), turns[len(turns)-h.limit:]...)
	}
	h.turns[conversationID] = turns
}

func (h *History) Reset(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, conversationID)
}
