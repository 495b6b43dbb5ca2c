package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"lexipal/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/sirupsen/logrus"
)

type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// MessageQueue hands inbound messages to the processor function with an
// asynchronous invocation, so the webhook can acknowledge immediately.
type MessageQueue struct {
	logger       *logrus.Entry
	client       LambdaAPI
	functionName string
}

func NewMessageQueue(logger *logrus.Entry, client LambdaAPI, functionName string) *MessageQueue {
	return &MessageQueue{
		logger:       logger,
		client:       client,
		functionName: functionName,
	}
}

func (q *MessageQueue) Enqueue(ctx context.Context, msg models.InboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := q.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(q.functionName),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	}); err != nil {
		return fmt.Errorf("failed to invoke %s: %w", q.functionName, err)
	}

	q.logger.WithFields(logrus.Fields{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
	}).Info("Queued message for processing")
	return nil
}
