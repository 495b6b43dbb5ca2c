package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

type Network struct {
	ID          string
	ChainID     int64
	ExplorerURL string
}

var networks = map[string]Network{
	"base-mainnet": {ID: "base-mainnet", ChainID: 8453, ExplorerURL: "https://basescan.org"},
	"base-sepolia": {ID: "base-sepolia", ChainID: 84532, ExplorerURL: "https://sepolia.basescan.org"},
}

var ErrUnknownNetwork = errors.New("unknown network")

func LookupNetwork(id string) (Network, error) {
	if id == "" {
		id = "base-sepolia"
	}
	n, ok := networks[id]
	if !ok {
		return Network{}, fmt.Errorf("%q: %w", id, ErrUnknownNetwork)
	}
	return n, nil
}

func (n Network) ChainIDBig() *big.Int {
	return big.NewInt(n.ChainID)
}

// ChainIDHex is the chain id as wallet_sendCalls expects it.
func (n Network) ChainIDHex() string {
	return fmt.Sprintf("0x%x", n.ChainID)
}

func (n Network) TxURL(txHash string) string {
	return fmt.Sprintf("%s/tx/%s", n.ExplorerURL, txHash)
}

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// FormatEther renders wei as a decimal ether amount without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(wei, weiPerEther)
	s := r.FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// ParseEther converts a decimal ether amount such as "0.001" to wei. More
// than 18 fractional digits is an error.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok || strings.Contains(s, "/") {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative ether amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		return nil, fmt.Errorf("ether amount %q has more than 18 decimals", s)
	}
	return new(big.Int).Set(r.Num()), nil
}
