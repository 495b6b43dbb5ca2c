package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lexipal/internal/contract"
	"lexipal/internal/models"
	"lexipal/internal/utils"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	// FundingThreshold is the operating wallet balance below which /botfund
	// asks for a top-up (0.00005 ETH).
	FundingThreshold = big.NewInt(50_000_000_000_000)
	// FundingAmount is the proposed top-up (0.0001 ETH).
	FundingAmount = big.NewInt(100_000_000_000_000)
)

func (d *Dispatcher) handleGoal(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage, req GoalRequest) []string {
	switch {
	case req.Proposal != nil:
		addr, reply := d.userAddress(ctx, logger, msg.SenderID)
		if reply != "" {
			return []string{reply}
		}
		p := req.Proposal
		calls, err := d.calls.CreateGoal(addr, p.TargetVocab, p.DurationDays, p.Difficulty, p.Stake)
		if err != nil {
			logger.WithError(err).Error("Failed to build createGoal call")
			return []string{apologyText}
		}
		return d.proposal(logger, calls, fmt.Sprintf(
			"Please confirm the transaction in your wallet to create your goal: learn %d words in %d days at difficulty %d, staking %s ETH.",
			p.TargetVocab, p.DurationDays, p.Difficulty, contract.FormatEther(p.Stake)))

	case req.Description != "":
		s, err := d.assistant.SuggestGoal(ctx, req.Description)
		if err != nil {
			logger.WithError(err).Error("Failed to suggest goal")
			return []string{apologyText}
		}
		return []string{fmt.Sprintf("💡 Suggested goal: learn %d words in %d days at difficulty %d, staking %s ETH.\n%s\n\nTo create it, send:\n/goal %d %d %s %d",
			s.TargetVocab, s.DurationDays, s.Difficulty, s.StakeEth, s.Reason,
			s.TargetVocab, s.DurationDays, s.StakeEth, s.Difficulty)}

	default:
		text, _ := d.goalStatus(ctx, logger, msg.SenderID)
		return []string{text}
	}
}

// goalStatus renders the active goal. The goal is nil when the reply is an
// error or hint instead of a status.
func (d *Dispatcher) goalStatus(ctx context.Context, logger *logrus.Entry, userID string) (string, *models.GoalInfo) {
	_, goalID, reply := d.activeGoal(ctx, logger, userID)
	if reply != "" {
		return reply, nil
	}
	goal, err := d.contract.Goal(ctx, goalID)
	if err != nil {
		logger.WithError(err).Error("Failed to read goal")
		return apologyText, nil
	}

	status := "🚀 In progress..."
	if goal.Claimed {
		status = "✅ Completed and claimed!"
	} else if goal.Completed() {
		status = "🏁 Target reached! Type /claim to get your stake back."
	} else if goal.Expired(d.now()) {
		status = "⌛ Deadline passed. Type /claim to settle your stake."
	}

	lines := []string{
		fmt.Sprintf("📚 Goal ID: #%s", goalID),
		fmt.Sprintf("🎯 Target: %d words", goal.TargetVocab),
		fmt.Sprintf("⏱️ Duration: %d days", goal.DurationDays()),
		fmt.Sprintf("📅 Started: %s", goal.StartTime.Format("2006-01-02")),
		fmt.Sprintf("⏳ Days left: %d", goal.DaysLeft(d.now())),
		fmt.Sprintf("📊 Progress: %d/%d words learned", goal.LearnedCount, goal.TargetVocab),
		fmt.Sprintf("💪 Difficulty: %d/5", goal.Difficulty),
		fmt.Sprintf("💰 Stake: %s ETH", contract.FormatEther(goal.Stake)),
		status,
	}
	if goal.ID == nil {
		goal.ID = goalID
	}
	return strings.Join(lines, "\n"), goal
}

func (d *Dispatcher) handleCheckGoal(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage) []string {
	text, goal := d.goalStatus(ctx, logger, msg.SenderID)
	if goal == nil || d.reminder == nil || goal.Claimed || goal.Expired(d.now()) {
		return []string{text}
	}

	err := d.reminder.Schedule(ctx, msg.SenderID, goal.ID.String(), goal.Deadline)
	switch {
	case err == nil:
		text += "\n\n⏰ I'll remind you one day before the deadline."
	case errors.Is(err, utils.ErrReminderTooLate):
	default:
		logger.WithError(err).Warn("Failed to schedule deadline reminder")
	}
	return []string{text}
}

func (d *Dispatcher) handleClaim(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage) []string {
	addr, goalID, reply := d.activeGoal(ctx, logger, msg.SenderID)
	if reply != "" {
		return []string{reply}
	}
	goal, err := d.contract.Goal(ctx, goalID)
	if err != nil {
		logger.WithError(err).Error("Failed to read goal")
		return []string{apologyText}
	}

	now := d.now()
	if goal.Claimed {
		return []string{fmt.Sprintf("Your stake for goal #%s has already been claimed.", goalID)}
	}
	if !goal.Claimable(now) {
		return []string{fmt.Sprintf("You can't claim yet: %d/%d words learned and %d day(s) left. Keep going! 💪",
			goal.LearnedCount, goal.TargetVocab, goal.DaysLeft(now))}
	}

	calls, err := d.calls.ClaimStake(addr)
	if err != nil {
		logger.WithError(err).Error("Failed to build claimStake call")
		return []string{apologyText}
	}
	return d.proposal(logger, calls, fmt.Sprintf("Please confirm the transaction in your wallet to claim your stake of %s ETH.", contract.FormatEther(goal.Stake)))
}

func (d *Dispatcher) handleBotFund(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage) []string {
	operator := d.contract.Operator()
	if operator == (common.Address{}) {
		return []string{"The bot has no operating wallet configured."}
	}
	balance, err := d.contract.Balance(ctx, operator)
	if err != nil {
		logger.WithError(err).Error("Failed to read bot balance")
		return []string{apologyText}
	}

	if balance.Cmp(FundingThreshold) >= 0 {
		return []string{fmt.Sprintf("✅ The bot wallet %s has %s ETH, enough to record your progress.", operator.Hex(), contract.FormatEther(balance))}
	}

	addr, reply := d.userAddress(ctx, logger, msg.SenderID)
	if reply != "" {
		return []string{fmt.Sprintf("⚠️ The bot wallet %s is low on gas (%s ETH).\n\n%s", operator.Hex(), contract.FormatEther(balance), reply)}
	}
	calls := d.calls.Fund(addr, operator, FundingAmount)
	return d.proposal(logger, calls, fmt.Sprintf("⚠️ The bot wallet %s is low on gas (%s ETH). Please confirm the transfer of %s ETH in your wallet to keep progress updates going.",
		operator.Hex(), contract.FormatEther(balance), contract.FormatEther(FundingAmount)))
}

func (d *Dispatcher) handleWallet(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage, addr *common.Address) []string {
	if addr == nil {
		binding, err := d.wallets.GetWallet(ctx, msg.SenderID)
		if err != nil {
			logger.WithError(err).Error("Failed to load wallet binding")
			return []string{apologyText}
		}
		if binding == nil {
			return []string{linkWalletText}
		}
		return []string{fmt.Sprintf("🔗 Your linked wallet: %s\nSend /wallet 0xNewAddress to change it.", binding.Address)}
	}

	if err := d.wallets.SaveWallet(ctx, msg.SenderID, addr.Hex()); err != nil {
		logger.WithError(err).Error("Failed to save wallet binding")
		return []string{apologyText}
	}
	return []string{fmt.Sprintf("🔗 Wallet %s linked! Create a goal with /goal or type /help to see what I can do.", addr.Hex())}
}

// proposal renders a wallet_sendCalls payload followed by the confirmation
// text the user reads.
func (d *Dispatcher) proposal(logger *logrus.Entry, calls models.WalletSendCalls, confirmation string) []string {
	payload, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		logger.WithError(err).Error("Failed to marshal wallet calls")
		return []string{apologyText}
	}
	return []string{string(payload), confirmation}
}
