package models

type WalletBinding struct {
	UserID    string `json:"userId" dynamodbav:"userId" db:"user_id"`
	Address   string `json:"address" dynamodbav:"address" db:"address"`
	UpdatedAt string `json:"updatedAt" dynamodbav:"updatedAt" db:"updated_at"` // ISO timestamp
}

// WalletSendCalls is the wallet_sendCalls (EIP-5792) payload proposed to the
// user for transactions that have to be signed by the user's own wallet.
type WalletSendCalls struct {
	Version string       `json:"version"`
	From    string       `json:"from"`
	ChainID string       `json:"chainId"`
	Calls   []WalletCall `json:"calls"`
}

type WalletCall struct {
	To       string       `json:"to"`
	Data     string       `json:"data"`
	Value    string       `json:"value,omitempty"` // hex wei
	Metadata CallMetadata `json:"metadata"`
}

type CallMetadata struct {
	Description     string `json:"description"`
	TransactionType string `json:"transactionType"`
}
