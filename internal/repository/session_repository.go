package repository

import (
	"context"
	"fmt"
	"lexipal/internal/quiz"
	"lexipal/internal/utils"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

const sessionSortKey = "quiz"

type sessionItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	quiz.State
	UpdatedAtUnix int64 `dynamodbav:"updatedAtUnix"`
	// ExpiresAt is the table's TTL attribute.
	ExpiresAt int64 `dynamodbav:"expiresAt"`
}

type sessionRepository struct {
	logger    *logrus.Entry
	client    utils.DynamoDbAPI
	tableName string
	ttl       time.Duration
}

func NewSessionRepository(logger *logrus.Entry, client utils.DynamoDbAPI, tableName string, ttl time.Duration) utils.SessionRepository {
	return &sessionRepository{
		logger:    logger,
		client:    client,
		tableName: tableName,
		ttl:       ttl,
	}
}

func sessionKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: key + "#session"},
		"sk": &types.AttributeValueMemberS{Value: sessionSortKey},
	}
}

func (r *sessionRepository) GetSession(ctx context.Context, key string) (*quiz.State, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            sessionKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get quiz session from DynamoDB")
		return nil, fmt.Errorf("failed to get quiz session: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal quiz session")
		return nil, fmt.Errorf("failed to unmarshal quiz session: %w", err)
	}
	state := item.State
	return &state, nil
}

func (r *sessionRepository) SaveSession(ctx context.Context, state *quiz.State) error {
	item := sessionItem{
		PK:            state.Key() + "#session",
		SK:            sessionSortKey,
		State:         *state,
		UpdatedAtUnix: state.UpdatedAt.Unix(),
	}
	if r.ttl > 0 {
		item.ExpiresAt = state.UpdatedAt.Add(r.ttl).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal quiz session: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		r.logger.WithError(err).Error("Failed to save quiz session to DynamoDB")
		return fmt.Errorf("failed to save quiz session: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"conversationId": state.ConversationID,
		"userId":         state.UserID,
		"word":           state.CurrentWord,
		"stage":          state.Stage.String(),
		"attempts":       state.Attempts,
	}).Debug("Saved quiz session")
	return nil
}

func (r *sessionRepository) DeleteSession(ctx context.Context, key string) error {
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       sessionKey(key),
	}); err != nil {
		r.logger.WithError(err).Error("Failed to delete quiz session from DynamoDB")
		return fmt.Errorf("failed to delete quiz session: %w", err)
	}
	return nil
}

// PurgeSessions removes sessions not touched since olderThan. The TTL
// attribute covers production tables; this is for tables without TTL.
func (r *sessionRepository) PurgeSessions(ctx context.Context, olderThan time.Time) (int, error) {
	var (
		purged int
		start  map[string]types.AttributeValue
	)
	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(r.tableName),
			FilterExpression:     aws.String("sk = :sk AND updatedAtUnix < :cutoff"),
			ProjectionExpression: aws.String("pk, sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sk":     &types.AttributeValueMemberS{Value: sessionSortKey},
				":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(olderThan.Unix(), 10)},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return purged, fmt.Errorf("failed to scan quiz sessions: %w", err)
		}
		for _, item := range result.Items {
			if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"pk": item["pk"],
					"sk": item["sk"],
				},
			}); err != nil {
				return purged, fmt.Errorf("failed to delete quiz session: %w", err)
			}
			purged++
		}
		if len(result.LastEvaluatedKey) == 0 {
			return purged, nil
		}
		start = result.LastEvaluatedKey
	}
}
