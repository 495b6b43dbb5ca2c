package models

import (
	"fmt"
	"strings"
	"time"
)

type ClaimStatus string

const (
	ClaimPending ClaimStatus = "pending"
	ClaimDone    ClaimStatus = "done"
)

// ProgressKey identifies one quiz step: a word reaching Level within a goal.
// A progress transaction is sent at most once per key.
type ProgressKey struct {
	User   string
	GoalID string
	Word   string
	Level  uint8
}

func NewProgressKey(user, goalID, word string, level uint8) ProgressKey {
	return ProgressKey{
		User:   strings.ToLower(user),
		GoalID: goalID,
		Word:   strings.ToLower(word),
		Level:  level,
	}
}

// Step is the key within the user's partition.
func (k ProgressKey) Step() string {
	return fmt.Sprintf("%s#%s#%d", k.GoalID, k.Word, k.Level)
}

func (k ProgressKey) String() string {
	return k.User + "#" + k.Step()
}

// ProgressClaim is the ledger row guarding a ProgressKey.
type ProgressClaim struct {
	User      string      `json:"user" dynamodbav:"user" db:"user_address"`
	GoalID    string      `json:"goalId" dynamodbav:"goalId" db:"goal_id"`
	Word      string      `json:"word" dynamodbav:"word" db:"word"`
	Level     uint8       `json:"level" dynamodbav:"level" db:"level"`
	Status    ClaimStatus `json:"status" dynamodbav:"status" db:"status"`
	TxHash    string      `json:"txHash" dynamodbav:"txHash" db:"tx_hash"`
	CreatedAt time.Time   `json:"createdAt" dynamodbav:"createdAt" db:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" dynamodbav:"updatedAt" db:"updated_at"`
}

func (c ProgressClaim) Key() ProgressKey {
	return ProgressKey{User: c.User, GoalID: c.GoalID, Word: c.Word, Level: c.Level}
}

func NewPendingClaim(key ProgressKey, now time.Time) ProgressClaim {
	return ProgressClaim{
		User:      key.User,
		GoalID:    key.GoalID,
		Word:      key.Word,
		Level:     key.Level,
		Status:    ClaimPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
