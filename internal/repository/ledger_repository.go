package repository

import (
	"context"
	"errors"
	"fmt"
	"lexipal/internal/models"
	"lexipal/internal/utils"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

type ledgerItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	models.ProgressClaim
}

type ledgerRepository struct {
	logger    *logrus.Entry
	client    utils.DynamoDbAPI
	tableName string
	now       func() time.Time
}

func NewLedgerRepository(logger *logrus.Entry, client utils.DynamoDbAPI, tableName string) utils.LedgerRepository {
	return &ledgerRepository{
		logger:    logger,
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func ledgerPartition(user string) string {
	return fmt.Sprintf("%s#progress", user)
}

func ledgerKey(key models.ProgressKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: ledgerPartition(key.User)},
		"sk": &types.AttributeValueMemberS{Value: key.Step()},
	}
}

func (r *ledgerRepository) ClaimProgress(ctx context.Context, key models.ProgressKey) (*models.ProgressClaim, error) {
	claim := models.NewPendingClaim(key, r.now())
	av, err := attributevalue.MarshalMap(ledgerItem{
		PK:            ledgerPartition(key.User),
		SK:            key.Step(),
		ProgressClaim: claim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress claim: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err == nil {
		r.logger.WithField("key", key.String()).Info("Claimed progress step")
		return &claim, nil
	}

	var conditionFailed *types.ConditionalCheckFailedException
	if !errors.As(err, &conditionFailed) {
		r.logger.WithError(err).Error("Failed to claim progress step in DynamoDB")
		return nil, fmt.Errorf("failed to claim progress: %w", err)
	}

	existing, err := r.getClaim(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("progress claim %s was released concurrently", key)
	}
	return existing, utils.ErrClaimExists
}

func (r *ledgerRepository) getClaim(ctx context.Context, key models.ProgressKey) (*models.ProgressClaim, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            ledgerKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get progress claim: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item ledgerItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress claim: %w", err)
	}
	claim := item.ProgressClaim
	return &claim, nil
}

func (r *ledgerRepository) CompleteProgress(ctx context.Context, key models.ProgressKey, txHash string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              ledgerKey(key),
		UpdateExpression: aws.String("SET #status = :done, txHash = :tx, updatedAt = :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: string(models.ClaimDone)},
			":tx":   &types.AttributeValueMemberS{Value: txHash},
			":now":  &types.AttributeValueMemberS{Value: r.now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to complete progress step in DynamoDB")
		return fmt.Errorf("failed to complete progress: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"key":    key.String(),
		"txHash": txHash,
	}).Info("Completed progress step")
	return nil
}

// ReleaseProgress drops a pending claim so the step can be attempted again.
// Completed claims are left in place.
func (r *ledgerRepository) ReleaseProgress(ctx context.Context, key models.ProgressKey) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 ledgerKey(key),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(models.ClaimPending)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		r.logger.WithError(err).Error("Failed to release progress step in DynamoDB")
		return fmt.Errorf("failed to release progress: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ListProgress(ctx context.Context, user, goalID string) ([]models.ProgressClaim, error) {
	var (
		claims []models.ProgressClaim
		start  map[string]types.AttributeValue
	)
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :goal)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":   &types.AttributeValueMemberS{Value: ledgerPartition(strings.ToLower(user))},
				":goal": &types.AttributeValueMemberS{Value: goalID + "#"},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			r.logger.WithError(err).Error("Failed to query progress from DynamoDB")
			return nil, fmt.Errorf("failed to list progress: %w", err)
		}

		var items []ledgerItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal progress claims: %w", err)
		}
		for _, item := range items {
			claims = append(claims, item.ProgressClaim)
		}

		if len(result.LastEvaluatedKey) == 0 {
			return claims, nil
		}
		start = result.LastEvaluatedKey
	}
}
