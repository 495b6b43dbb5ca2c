package contract

import (
	"context"
	"crypto/ecdsa"
	_ "embed"
	"errors"
	"fmt"
	"lexipal/internal/models"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

//go:embed abi/LanguageLearningGoal.json
var goalABIJSON string

// GoalABI is the parsed LanguageLearningGoal interface.
var GoalABI = mustParseABI(goalABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid LanguageLearningGoal ABI: %v", err))
	}
	return parsed
}

var ErrReadOnly = errors.New("contract client has no operator key")

// GoalContract is the subset of the LanguageLearningGoal contract the bot uses.
type GoalContract interface {
	ActiveGoalID(ctx context.Context, user common.Address) (*big.Int, error)
	WordProgress(ctx context.Context, user common.Address, word string) (uint8, error)
	Goal(ctx context.Context, goalID *big.Int) (*models.GoalInfo, error)
	UpdateProgress(ctx context.Context, goalID *big.Int, word string, signature []byte) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	Operator() common.Address
	Address() common.Address
	Network() Network
}

// Backend is satisfied by *ethclient.Client.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Client struct {
	logger   *logrus.Entry
	backend  Backend
	address  common.Address
	network  Network
	contract *bind.BoundContract
	operator *bind.TransactOpts
}

// NewClient binds the contract at address. operatorKey pays for the
// updateProgress transactions; it may be nil for a read-only client.
func NewClient(logger *logrus.Entry, backend Backend, address common.Address, network Network, operatorKey *ecdsa.PrivateKey) (*Client, error) {
	c := &Client{
		logger:   logger,
		backend:  backend,
		address:  address,
		network:  network,
		contract: bind.NewBoundContract(address, GoalABI, backend, backend, backend),
	}
	if operatorKey != nil {
		opts, err := bind.NewKeyedTransactorWithChainID(operatorKey, network.ChainIDBig())
		if err != nil {
			return nil, fmt.Errorf("failed to create transactor: %w", err)
		}
		c.operator = opts
	}
	return c, nil
}

func (c *Client) ActiveGoalID(ctx context.Context, user common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getActiveGoalId", user); err != nil {
		return nil, fmt.Errorf("getActiveGoalId: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Client) WordProgress(ctx context.Context, user common.Address, word string) (uint8, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getWordProgress", user, word); err != nil {
		return 0, fmt.Errorf("getWordProgress: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (c *Client) Goal(ctx context.Context, goalID *big.Int) (*models.GoalInfo, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "goals", goalID); err != nil {
		return nil, fmt.Errorf("goals: %w", err)
	}
	if len(out) != 8 {
		return nil, fmt.Errorf("goals: unexpected %d return values", len(out))
	}
	bigAt := func(i int) *big.Int {
		return *abi.ConvertType(out[i], new(*big.Int)).(**big.Int)
	}
	return &models.GoalInfo{
		ID:           new(big.Int).Set(goalID),
		User:         *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		TargetVocab:  bigAt(1).Uint64(),
		Stake:        bigAt(2),
		StartTime:    time.Unix(bigAt(3).Int64(), 0).UTC(),
		Deadline:     time.Unix(bigAt(4).Int64(), 0).UTC(),
		Claimed:      *abi.ConvertType(out[5], new(bool)).(*bool),
		LearnedCount: bigAt(6).Uint64(),
		Difficulty:   *abi.ConvertType(out[7], new(uint8)).(*uint8),
	}, nil
}

// UpdateProgress sends updateProgress(goalId, word, signature) from the
// operator wallet. It returns once the transaction is accepted by the node.
func (c *Client) UpdateProgress(ctx context.Context, goalID *big.Int, word string, signature []byte) (*types.Transaction, error) {
	if c.operator == nil {
		return nil, ErrReadOnly
	}
	opts := *c.operator
	opts.Context = ctx
	tx, err := c.contract.Transact(&opts, "updateProgress", goalID, word, signature)
	if err != nil {
		return nil, fmt.Errorf("updateProgress: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"goalId": goalID.String(),
		"word":   word,
		"txHash": tx.Hash().Hex(),
	}).Info("Submitted progress transaction")
	return tx, nil
}

func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.backend, tx)
}

func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, account, nil)
}

func (c *Client) Operator() common.Address {
	if c.operator == nil {
		return common.Address{}
	}
	return c.operator.From
}

func (c *Client) Address() common.Address {
	return c.address
}

func (c *Client) Network() Network {
	return c.network
}
