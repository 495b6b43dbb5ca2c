package main

import (
	"context"
	"errors"
	"lexipal/internal/repository"
	"lexipal/internal/utils"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "lexipal-reminder"
)

type EnvVars struct {
	channelSecret    string
	channelToken     string
	sessionTableName string
}

func getEnvironmentVariables() (envVars *EnvVars, err error) {
	channelSecret := os.Getenv("CHANNEL_SECRET")
	if channelSecret == "" {
		return nil, errors.New("CHANNEL_SECRET is not set")
	}

	channelToken := os.Getenv("CHANNEL_TOKEN")
	if channelToken == "" {
		return nil, errors.New("CHANNEL_TOKEN is not set")
	}

	sessionTableName := os.Getenv("SESSION_TABLE_NAME")
	if sessionTableName == "" {
		return nil, errors.New("SESSION_TABLE_NAME is not set")
	}

	return &EnvVars{
		channelSecret:    channelSecret,
		channelToken:     channelToken,
		sessionTableName: sessionTableName,
	}, nil
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  TIMESTAMP,
			logrus.FieldKeyLevel: SEVERITY,
			logrus.FieldKeyMsg:   MESSAGE,
		},
	})
	logger := logrus.WithField(COMPONENT, SERVICENAME)

	envVars, err := getEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Error("Failed to get environment variables")
		panic(err)
	}

	pusher, err := utils.NewLineBotPusher(envVars.channelSecret, envVars.channelToken, "Reminder Bot")
	if err != nil {
		logger.WithError(err).Error("Failed to initialize LINE Bot")
		panic(err)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		panic(err)
	}
	dynamodbClient := dynamodb.NewFromConfig(cfg)

	handler, err := NewHandler(logger, pusher,
		repository.NewWalletRepository(logger, dynamodbClient, envVars.sessionTableName),
		repository.NewLedgerRepository(logger, dynamodbClient, envVars.sessionTableName),
	)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.EventHandler)
}
