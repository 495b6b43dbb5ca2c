package progress

import (
	"context"
	"errors"
	"lexipal/internal/contract"
	"lexipal/internal/models"
	"lexipal/internal/repository"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

var testUser = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakeContract struct {
	mu         sync.Mutex
	goalID     *big.Int
	progress   map[string]uint8
	sent       int
	sendErr    error
	waitErr    error
	revert     bool
	block      bool
	lastSig    []byte
	lastWord   string
	lastGoalID *big.Int
}

func newFakeContract() *fakeContract {
	return &fakeContract{goalID: big.NewInt(7), progress: map[string]uint8{}}
}

func (f *fakeContract) ActiveGoalID(context.Context, common.Address) (*big.Int, error) {
	return f.goalID, nil
}

func (f *fakeContract) WordProgress(_ context.Context, _ common.Address, word string) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress[word], nil
}

func (f *fakeContract) Goal(context.Context, *big.Int) (*models.GoalInfo, error) {
	return nil, nil
}

func (f *fakeContract) UpdateProgress(_ context.Context, goalID *big.Int, word string, sig []byte) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent++
	f.lastSig, f.lastWord, f.lastGoalID = sig, word, goalID
	return types.NewTx(&types.LegacyTx{Nonce: uint64(f.sent)}), nil
}

func (f *fakeContract) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	if f.revert {
		return &types.Receipt{Status: types.ReceiptStatusFailed}, nil
	}
	f.mu.Lock()
	f.progress[f.lastWord]++
	f.mu.Unlock()
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()}, nil
}

func (f *fakeContract) Balance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeContract) Operator() common.Address  { return common.Address{} }
func (f *fakeContract) Address() common.Address   { return common.Address{} }
func (f *fakeContract) Network() contract.Network { return contract.Network{} }

type fakeSigner struct{}

func (fakeSigner) SignProgress(goalID *big.Int, word string) ([]byte, error) {
	return []byte(goalID.String() + ":" + word), nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func TestRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("submits one step and marks the ledger done", func(t *testing.T) {
		chain := newFakeContract()
		ledger := repository.NewMemoryStore()
		u := NewUpdater(testLogger(), chain, fakeSigner{}, ledger, time.Second)

		res, err := u.Record(ctx, testUser, "Hello", 0)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if res.NewProgress != 1 || res.TxHash == "" || res.AlreadyRecorded {
			t.Errorf("unexpected result: %+v", res)
		}
		if chain.sent != 1 || chain.lastWord != "hello" || chain.lastGoalID.Int64() != 7 {
			t.Errorf("unexpected submission: sent=%d word=%q goal=%v", chain.sent, chain.lastWord, chain.lastGoalID)
		}
		if string(chain.lastSig) != "7:hello" {
			t.Errorf("signature not passed through: %q", chain.lastSig)
		}
		claims, _ := ledger.ListProgress(ctx, testUser.Hex(), "7")
		if len(claims) != 1 || claims[0].Status != models.ClaimDone || claims[0].TxHash != res.TxHash {
			t.Errorf("ledger not completed: %+v", claims)
		}
	})

	t.Run("repeating the same step sends nothing", func(t *testing.T) {
		chain := newFakeContract()
		u := NewUpdater(testLogger(), chain, fakeSigner{}, repository.NewMemoryStore(), time.Second)

		if _, err := u.Record(ctx, testUser, "hello", 0); err != nil {
			t.Fatalf("Record: %v", err)
		}
		res, err := u.Record(ctx, testUser, "hello", 0)
		if err != nil {
			t.Fatalf("second Record: %v", err)
		}
		if !res.AlreadyRecorded || res.NewProgress != 1 {
			t.Errorf("expected already-recorded result, got %+v", res)
		}
		if chain.sent != 1 {
			t.Errorf("expected exactly one transaction, got %d", chain.sent)
		}
	})

	t.Run("done claim without chain progress is a duplicate", func(t *testing.T) {
		chain := newFakeContract()
		ledger := repository.NewMemoryStore()
		key := models.NewProgressKey(testUser.Hex(), "7", "hello", 1)
		_, _ = ledger.ClaimProgress(ctx, key)
		_ = ledger.CompleteProgress(ctx, key, "0xabc")
		u := NewUpdater(testLogger(), chain, fakeSigner{}, ledger, time.Second)

		_, err := u.Record(ctx, testUser, "hello", 0)
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		if chain.sent != 0 {
			t.Errorf("expected no transaction, got %d", chain.sent)
		}
	})

	t.Run("fresh pending claim is in flight", func(t *testing.T) {
		chain := newFakeContract()
		ledger := repository.NewMemoryStore()
		_, _ = ledger.ClaimProgress(ctx, models.NewProgressKey(testUser.Hex(), "7", "hello", 1))
		u := NewUpdater(testLogger(), chain, fakeSigner{}, ledger, time.Second)

		if _, err := u.Record(ctx, testUser, "hello", 0); !errors.Is(err, ErrInFlight) {
			t.Fatalf("expected ErrInFlight, got %v", err)
		}
	})

	t.Run("stale pending claim is taken over", func(t *testing.T) {
		chain := newFakeContract()
		ledger := repository.NewMemoryStore()
		_, _ = ledger.ClaimProgress(ctx, models.NewProgressKey(testUser.Hex(), "7", "hello", 1))
		u := NewUpdater(testLogger(), chain, fakeSigner{}, ledger, time.Second)
		u.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

		if _, err := u.Record(ctx, testUser, "hello", 0); err != nil {
			t.Fatalf("expected stale claim to be reclaimed, got %v", err)
		}
		if chain.sent != 1 {
			t.Errorf("expected one transaction, got %d", chain.sent)
		}
	})

	t.Run("no active goal", func(t *testing.T) {
		chain := newFakeContract()
		chain.goalID = big.NewInt(0)
		u := NewUpdater(testLogger(), chain, fakeSigner{}, repository.NewMemoryStore(), time.Second)

		if _, err := u.Record(ctx, testUser, "hello", 0); !errors.Is(err, ErrNoActiveGoal) {
			t.Fatalf("expected ErrNoActiveGoal, got %v", err)
		}
	})

	t.Run("mastered word is rejected", func(t *testing.T) {
		chain := newFakeContract()
		chain.progress["hello"] = 3
		u := NewUpdater(testLogger(), chain, fakeSigner{}, repository.NewMemoryStore(), time.Second)

		if _, err := u.Next(ctx, testUser, "hello"); !errors.Is(err, ErrAlreadyMastered) {
			t.Fatalf("expected ErrAlreadyMastered, got %v", err)
		}
	})

	t.Run("send failure releases the claim", func(t *testing.T) {
		chain := newFakeContract()
		chain.sendErr = errors.New("insufficient funds")
		ledger := repository.NewMemoryStore()
		u := NewUpdater(testLogger(), chain, fakeSigner{}, ledger, time.Second)

		if _, err := u.Record(ctx, testUser, "hello", 0); err == nil {
			t.Fatal("expected error")
		}
		claims, _ := ledger.ListProgress(ctx, testUser.Hex(), "7")
		if len(claims) != 0 {
			t.Errorf("expected released claim, got %+v", claims)
		}

		chain.sendErr = nil
		if _, err := u.Record(ctx, testUser, "hello", 0); err != nil {
			t.Fatalf("retry after failure: %v", err)
		}
	})

	t.Run("revert releases the claim", func(t *testing.T) {
		chain := newFakeContract()
		chain.revert = true
		ledger := repository.NewMemoryStore()
		u := NewUpdater(testLogger(), chain, fakeSigner{}, ledger, time.Second)

		if _, err := u.Record(ctx, testUser, "hello", 0); !errors.Is(err, ErrTxReverted) {
			t.Fatalf("expected ErrTxReverted, got %v", err)
		}
		claims, _ := ledger.ListProgress(ctx, testUser.Hex(), "7")
		if len(claims) != 0 {
			t.Errorf("expected released claim, got %+v", claims)
		}
	})

	t.Run("timeout keeps the claim pending", func(t *testing.T) {
		chain := newFakeContract()
		chain.block = true
		ledger := repository.NewMemoryStore()
		u := NewUpdater(testLogger(), chain, fakeSigner{}, ledger, 20*time.Millisecond)

		if _, err := u.Record(ctx, testUser, "hello", 0); !errors.Is(err, ErrTxTimeout) {
			t.Fatalf("expected ErrTxTimeout, got %v", err)
		}
		claims, _ := ledger.ListProgress(ctx, testUser.Hex(), "7")
		if len(claims) != 1 || claims[0].Status != models.ClaimPending {
			t.Errorf("expected pending claim, got %+v", claims)
		}
	})

	t.Run("next uses the on-chain level", func(t *testing.T) {
		chain := newFakeContract()
		chain.progress["hello"] = 2
		u := NewUpdater(testLogger(), chain, fakeSigner{}, repository.NewMemoryStore(), time.Second)

		res, err := u.Next(ctx, testUser, "hello")
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if res.NewProgress != 3 {
			t.Errorf("expected progress 3, got %d", res.NewProgress)
		}
	})
}

func TestSignerSatisfiesProgressSigner(t *testing.T) {
	s, err := contract.NewSigner("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	var _ ProgressSigner = s
}
