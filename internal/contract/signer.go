package contract

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ProgressDigest is keccak256(abi.encodePacked(uint256 goalId, string word)),
// the message the contract expects the authority to have signed.
func ProgressDigest(goalID *big.Int, word string) (common.Hash, error) {
	if goalID == nil || goalID.Sign() < 0 || goalID.BitLen() > 256 {
		return common.Hash{}, errors.New("goal id must be a uint256")
	}
	return crypto.Keccak256Hash(common.LeftPadBytes(goalID.Bytes(), 32), []byte(word)), nil
}

// Signer holds the authority key that vouches for quiz results.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(hexKey string) (*Signer, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// SignDigest signs the 32 raw digest bytes as an Ethereum signed message
// (EIP-191) and returns r||s||v with v in {27, 28}.
func (s *Signer) SignDigest(digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest.Bytes()), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignProgress computes the progress digest for (goalID, word) and signs it.
func (s *Signer) SignProgress(goalID *big.Int, word string) ([]byte, error) {
	digest, err := ProgressDigest(goalID, word)
	if err != nil {
		return nil, err
	}
	return s.SignDigest(digest)
}

// RecoverSigner returns the address that produced an EIP-191 signature over digest.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(digest.Bytes()), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
