package models

import (
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// GoalInfo mirrors the contract's goals(goalId) getter.
type GoalInfo struct {
	ID           *big.Int
	User         common.Address
	TargetVocab  uint64
	Stake        *big.Int // wei
	StartTime    time.Time
	Deadline     time.Time
	Claimed      bool
	LearnedCount uint64
	Difficulty   uint8
}

func (g *GoalInfo) DurationDays() int {
	return int(math.Ceil(g.Deadline.Sub(g.StartTime).Hours() / 24))
}

func (g *GoalInfo) DaysLeft(now time.Time) int {
	if !now.Before(g.Deadline) {
		return 0
	}
	return int(math.Ceil(g.Deadline.Sub(now).Hours() / 24))
}

func (g *GoalInfo) Completed() bool {
	return g.LearnedCount >= g.TargetVocab
}

func (g *GoalInfo) Expired(now time.Time) bool {
	return !now.Before(g.Deadline)
}

// Claimable reports whether claimStake would be accepted: the goal is either
// reached or past its deadline, and the stake has not been paid out yet.
func (g *GoalInfo) Claimable(now time.Time) bool {
	return !g.Claimed && (g.Completed() || g.Expired(now))
}
