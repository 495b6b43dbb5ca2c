package progress

import (
	"context"
	"errors"
	"fmt"
	"lexipal/internal/contract"
	"lexipal/internal/models"
	"lexipal/internal/quiz"
	"lexipal/internal/utils"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

const DefaultTxTimeout = 90 * time.Second

var (
	ErrNoActiveGoal    = errors.New("no active goal")
	ErrAlreadyMastered = errors.New("word already mastered")
	ErrDuplicate       = errors.New("progress step already submitted")
	ErrInFlight        = errors.New("progress step is being submitted")
	ErrTxTimeout       = errors.New("timed out waiting for transaction")
	ErrTxReverted      = errors.New("transaction reverted")
)

// ProgressSigner produces the authority signature the contract checks.
type ProgressSigner interface {
	SignProgress(goalID *big.Int, word string) ([]byte, error)
}

type Result struct {
	GoalID      *big.Int
	NewProgress uint8
	TxHash      string
	// AlreadyRecorded means the chain was ahead of the caller; no
	// transaction was sent.
	AlreadyRecorded bool
}

type Updater struct {
	logger     *logrus.Entry
	contract   contract.GoalContract
	signer     ProgressSigner
	ledger     utils.LedgerRepository
	txTimeout  time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewUpdater wires the contract, the authority signer and the ledger that
// keeps each (user, goal, word, level) step to a single transaction.
func NewUpdater(logger *logrus.Entry, goal contract.GoalContract, signer ProgressSigner, ledger utils.LedgerRepository, txTimeout time.Duration) *Updater {
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	return &Updater{
		logger:     logger,
		contract:   goal,
		signer:     signer,
		ledger:     ledger,
		txTimeout:  txTimeout,
		staleAfter: 2 * txTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ActiveGoal returns the user's active goal id, or ErrNoActiveGoal.
func (u *Updater) ActiveGoal(ctx context.Context, user common.Address) (*big.Int, error) {
	goalID, err := u.contract.ActiveGoalID(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to read active goal: %w", err)
	}
	if goalID == nil || goalID.Sign() == 0 {
		return nil, ErrNoActiveGoal
	}
	return goalID, nil
}

// Record submits the step that takes word from level `from` to from+1.
// When the chain already shows progress past `from` nothing is sent and the
// result is marked AlreadyRecorded.
func (u *Updater) Record(ctx context.Context, user common.Address, word string, from uint8) (*Result, error) {
	return u.record(ctx, user, word, &from)
}

// Next submits one step from whatever the chain currently reports (/update).
func (u *Updater) Next(ctx context.Context, user common.Address, word string) (*Result, error) {
	return u.record(ctx, user, word, nil)
}

func (u *Updater) record(ctx context.Context, user common.Address, word string, from *uint8) (*Result, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	logger := u.logger.WithFields(logrus.Fields{
		"user": user.Hex(),
		"word": word,
	})

	goalID, err := u.ActiveGoal(ctx, user)
	if err != nil {
		return nil, err
	}

	current, err := u.contract.WordProgress(ctx, user, word)
	if err != nil {
		return nil, fmt.Errorf("failed to read word progress: %w", err)
	}
	if current >= quiz.MasteredLevel {
		return nil, ErrAlreadyMastered
	}
	if from != nil && current > *from {
		logger.WithField("progress", current).Info("Progress already recorded on chain")
		return &Result{GoalID: goalID, NewProgress: current, AlreadyRecorded: true}, nil
	}

	key := models.NewProgressKey(user.Hex(), goalID.String(), word, current+1)
	if err := u.claim(ctx, key); err != nil {
		return nil, err
	}

	txHash, sent, err := u.submit(ctx, goalID, word)
	if err != nil {
		// A broadcast transaction may still be mined; its claim stays pending
		// until it goes stale so a retry cannot double-submit.
		if !sent || errors.Is(err, ErrTxReverted) {
			if rerr := u.ledger.ReleaseProgress(ctx, key); rerr != nil {
				logger.WithError(rerr).Error("Failed to release progress claim")
			}
		}
		logger.WithError(err).Error("Progress update failed")
		return nil, err
	}

	if err := u.ledger.CompleteProgress(ctx, key, txHash); err != nil {
		// The transaction is mined; the chain is the source of truth from here.
		logger.WithError(err).Error("Failed to mark progress claim done")
	}

	logger.WithFields(logrus.Fields{
		"goalId":   goalID.String(),
		"progress": current + 1,
		"txHash":   txHash,
	}).Info("Recorded progress on chain")

	return &Result{GoalID: goalID, NewProgress: current + 1, TxHash: txHash}, nil
}

func (u *Updater) claim(ctx context.Context, key models.ProgressKey) error {
	existing, err := u.ledger.ClaimProgress(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, utils.ErrClaimExists) {
		return fmt.Errorf("failed to claim progress step: %w", err)
	}

	if existing.Status == models.ClaimDone {
		return fmt.Errorf("%s (tx %s): %w", key.Step(), existing.TxHash, ErrDuplicate)
	}
	if u.now().Sub(existing.CreatedAt) < u.staleAfter {
		return ErrInFlight
	}

	u.logger.WithField("key", key.String()).Warn("Reclaiming stale progress claim")
	if err := u.ledger.ReleaseProgress(ctx, key); err != nil {
		return fmt.Errorf("failed to release stale claim: %w", err)
	}
	if _, err := u.ledger.ClaimProgress(ctx, key); err != nil {
		if errors.Is(err, utils.ErrClaimExists) {
			return ErrInFlight
		}
		return fmt.Errorf("failed to claim progress step: %w", err)
	}
	return nil
}

// submit reports whether the transaction was broadcast alongside any error.
func (u *Updater) submit(ctx context.Context, goalID *big.Int, word string) (string, bool, error) {
	signature, err := u.signer.SignProgress(goalID, word)
	if err != nil {
		return "", false, err
	}

	ctx, cancel := context.WithTimeout(ctx, u.txTimeout)
	defer cancel()

	tx, err := u.contract.UpdateProgress(ctx, goalID, word, signature)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", false, ErrTxTimeout
		}
		return "", false, err
	}

	receipt, err := u.contract.WaitMined(ctx, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", true, fmt.Errorf("%s: %w", tx.Hash().Hex(), ErrTxTimeout)
		}
		return "", true, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", true, fmt.Errorf("%s: %w", tx.Hash().Hex(), ErrTxReverted)
	}
	return tx.Hash().Hex(), true, nil
}
