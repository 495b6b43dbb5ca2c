package utils

import (
	"context"
	"errors"
	"lexipal/internal/models"
	"lexipal/internal/quiz"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var ErrClaimExists = errors.New("progress claim already exists")

// DynamoDbAPI defines the DynamoDB operations needed by our application
type DynamoDbAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SessionRepository stores quiz states under quiz.SessionKey. GetSession
// returns nil, nil when there is no state for the key.
type SessionRepository interface {
	GetSession(ctx context.Context, key string) (*quiz.State, error)
	SaveSession(ctx context.Context, state *quiz.State) error
	DeleteSession(ctx context.Context, key string) error
	PurgeSessions(ctx context.Context, olderThan time.Time) (int, error)
}

// LedgerRepository records which progress steps have been submitted.
// ClaimProgress is atomic: when the key is already claimed it returns the
// existing claim together with ErrClaimExists.
type LedgerRepository interface {
	ClaimProgress(ctx context.Context, key models.ProgressKey) (*models.ProgressClaim, error)
	CompleteProgress(ctx context.Context, key models.ProgressKey, txHash string) error
	ReleaseProgress(ctx context.Context, key models.ProgressKey) error
	ListProgress(ctx context.Context, user, goalID string) ([]models.ProgressClaim, error)
}

// WalletRepository maps chat users to the address used for contract reads.
// GetWallet returns nil, nil when the user has not bound an address.
type WalletRepository interface {
	GetWallet(ctx context.Context, userID string) (*models.WalletBinding, error)
	SaveWallet(ctx context.Context, userID, address string) error
}
