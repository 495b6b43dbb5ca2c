package repository

import (
	"context"
	"fmt"
	"lexipal/internal/models"
	"lexipal/internal/utils"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

type walletRepository struct {
	logger    *logrus.Entry
	client    utils.DynamoDbAPI
	tableName string
}

func NewWalletRepository(logger *logrus.Entry, client utils.DynamoDbAPI, tableName string) utils.WalletRepository {
	return &walletRepository{
		logger:    logger,
		client:    client,
		tableName: tableName,
	}
}

func walletKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("%s#wallet", userID)},
		"sk": &types.AttributeValueMemberS{Value: "address"},
	}
}

func (r *walletRepository) SaveWallet(ctx context.Context, userID, address string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	item := walletKey(userID)
	item["userId"] = &types.AttributeValueMemberS{Value: userID}
	item["address"] = &types.AttributeValueMemberS{Value: address}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: timestamp}

	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to save wallet binding to DynamoDB")
		return fmt.Errorf("failed to save wallet binding: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"userId":  userID,
		"address": address,
	}).Info("Successfully saved wallet binding")

	return nil
}

func (r *walletRepository) GetWallet(ctx context.Context, userID string) (*models.WalletBinding, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       walletKey(userID),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get wallet binding from DynamoDB")
		return nil, fmt.Errorf("failed to get wallet binding: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	binding := models.WalletBinding{UserID: userID}
	if attr, ok := result.Item["address"].(*types.AttributeValueMemberS); ok {
		binding.Address = attr.Value
	}
	if attr, ok := result.Item["updatedAt"].(*types.AttributeValueMemberS); ok {
		binding.UpdatedAt = attr.Value
	}
	if binding.Address == "" {
		return nil, nil
	}

	return &binding, nil
}
