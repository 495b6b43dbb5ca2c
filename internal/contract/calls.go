package contract

import (
	"fmt"
	"lexipal/internal/models"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const walletCallsVersion = "1.0"

// Calls builds wallet_sendCalls proposals for transactions the user signs
// with their own wallet.
type Calls struct {
	Contract common.Address
	Network  Network
}

func (c Calls) CreateGoal(from common.Address, targetVocab, durationDays uint64, difficulty uint8, stake *big.Int) (models.WalletSendCalls, error) {
	if stake == nil {
		stake = new(big.Int)
	}
	data, err := GoalABI.Pack("createGoal", new(big.Int).SetUint64(targetVocab), new(big.Int).SetUint64(durationDays), difficulty)
	if err != nil {
		return models.WalletSendCalls{}, fmt.Errorf("failed to encode createGoal: %w", err)
	}
	return c.wrap(from, models.WalletCall{
		To:    c.Contract.Hex(),
		Data:  hexutil.Encode(data),
		Value: hexutil.EncodeBig(stake),
		Metadata: models.CallMetadata{
			Description:     fmt.Sprintf("Create language learning goal: %d words in %d days (Difficulty: %d)", targetVocab, durationDays, difficulty),
			TransactionType: "createGoal",
		},
	}), nil
}

func (c Calls) ClaimStake(from common.Address) (models.WalletSendCalls, error) {
	data, err := GoalABI.Pack("claimStake")
	if err != nil {
		return models.WalletSendCalls{}, fmt.Errorf("failed to encode claimStake: %w", err)
	}
	return c.wrap(from, models.WalletCall{
		To:   c.Contract.Hex(),
		Data: hexutil.Encode(data),
		Metadata: models.CallMetadata{
			Description:     "Claim stake from completed language learning goal",
			TransactionType: "claimStake",
		},
	}), nil
}

// Fund is a plain value transfer topping up the bot's operating wallet.
func (c Calls) Fund(from, to common.Address, amount *big.Int) models.WalletSendCalls {
	return c.wrap(from, models.WalletCall{
		To:    to.Hex(),
		Data:  "0x",
		Value: hexutil.EncodeBig(amount),
		Metadata: models.CallMetadata{
			Description:     fmt.Sprintf("Send %s ETH to the bot wallet for gas", FormatEther(amount)),
			TransactionType: "fundBot",
		},
	})
}

func (c Calls) wrap(from common.Address, call models.WalletCall) models.WalletSendCalls {
	return models.WalletSendCalls{
		Version: walletCallsVersion,
		From:    from.Hex(),
		ChainID: c.Network.ChainIDHex(),
		Calls:   []models.WalletCall{call},
	}
}
