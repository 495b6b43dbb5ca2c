package main

import (
	"context"
	"errors"
	"fmt"
	"lexipal/internal/agent"
	"lexipal/internal/catalog"
	"lexipal/internal/contract"
	"lexipal/internal/indexer"
	"lexipal/internal/progress"
	"lexipal/internal/repository"
	"lexipal/internal/utils"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "lexipal-processor"

	defaultSessionTTL = 7 * 24 * time.Hour
)

type EnvVars struct {
	channelSecret       string
	channelToken        string
	openaiBaseUrl       string
	openaiApiKey        string
	openaiModel         string
	rpcUrl              string
	network             contract.Network
	contractAddress     common.Address
	signerPrivateKey    string
	botPrivateKey       string
	subgraphUrl         string
	txTimeout           time.Duration
	sessionTableName    string
	sessionTTL          time.Duration
	reminderFunctionArn string
	schedulerRoleArn    string
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

	openaiApiKey := os.Getenv("OPENAI_API_KEY")
	if openaiApiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	rpcUrl := os.Getenv("RPC_URL")
	if rpcUrl == "" {
		return nil, errors.New("RPC_URL is not set")
	}

	network, err := contract.LookupNetwork(os.Getenv("NETWORK_ID"))
	if err != nil {
		return nil, err
	}

	contractAddress := os.Getenv("LANGUAGE_LEARNING_CONTRACT_ADDRESS")
	if !common.IsHexAddress(contractAddress) {
		return nil, errors.New("LANGUAGE_LEARNING_CONTRACT_ADDRESS is not set")
	}

	signerPrivateKey := os.Getenv("SIGNER_PRIVATE_KEY")
	if signerPrivateKey == "" {
		return nil, errors.New("SIGNER_PRIVATE_KEY is not set")
	}

	botPrivateKey := os.Getenv("BOT_PRIVATE_KEY")
	if botPrivateKey == "" {
		return nil, errors.New("BOT_PRIVATE_KEY is not set")
	}

	sessionTableName := os.Getenv("SESSION_TABLE_NAME")
	if sessionTableName == "" {
		return nil, errors.New("SESSION_TABLE_NAME is not set")
	}

	txTimeout := progress.DefaultTxTimeout
	if v := os.Getenv("TX_TIMEOUT"); v != "" {
		if txTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("TX_TIMEOUT: %w", err)
		}
	}

	sessionTTL := defaultSessionTTL
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if sessionTTL, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("SESSION_TTL: %w", err)
		}
	}

	return &EnvVars{
		channelSecret:       channelSecret,
		channelToken:        channelToken,
		openaiBaseUrl:       os.Getenv("OPENAI_BASE_URL"),
		openaiApiKey:        openaiApiKey,
		openaiModel:         os.Getenv("OPENAI_MODEL"),
		rpcUrl:              rpcUrl,
		network:             network,
		contractAddress:     common.HexToAddress(contractAddress),
		signerPrivateKey:    signerPrivateKey,
		botPrivateKey:       botPrivateKey,
		subgraphUrl:         os.Getenv("SUBGRAPH_URL"),
		txTimeout:           txTimeout,
		sessionTableName:    sessionTableName,
		sessionTTL:          sessionTTL,
		reminderFunctionArn: os.Getenv("REMINDER_FUNCTION_ARN"),
		schedulerRoleArn:    os.Getenv("SCHEDULER_ROLE_ARN"),
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

	linebotClient, err := utils.NewLineBotClient(envVars.channelSecret, envVars.channelToken)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize LINE Bot")
		panic(err)
	}

	openaiClient, err := utils.NewOpenAIClient(envVars.openaiApiKey, envVars.openaiBaseUrl, envVars.openaiModel)
	if err != nil {
		panic(err)
	}

	vocabulary, err := catalog.Load()
	if err != nil {
		logger.WithError(err).Error("Failed to load vocabulary")
		panic(err)
	}

	ethClient, err := ethclient.DialContext(context.TODO(), envVars.rpcUrl)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to RPC")
		panic(err)
	}
	botKey, err := contract.ParsePrivateKey(envVars.botPrivateKey)
	if err != nil {
		panic(err)
	}
	goalContract, err := contract.NewClient(logger, ethClient, envVars.contractAddress, envVars.network, botKey)
	if err != nil {
		panic(err)
	}
	signer, err := contract.NewSigner(envVars.signerPrivateKey)
	if err != nil {
		panic(err)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		panic(err)
	}
	dynamodbClient := dynamodb.NewFromConfig(cfg)

	sessionRepo := repository.NewSessionRepository(logger, dynamodbClient, envVars.sessionTableName, envVars.sessionTTL)
	ledgerRepo := repository.NewLedgerRepository(logger, dynamodbClient, envVars.sessionTableName)
	walletRepo := repository.NewWalletRepository(logger, dynamodbClient, envVars.sessionTableName)

	examiner := utils.NewExaminer(logger, openaiClient)
	deps := agent.Dependencies{
		Catalog:   vocabulary,
		Evaluator: examiner,
		Questions: examiner,
		Assistant: openaiClient,
		Contract:  goalContract,
		Progress:  progress.NewUpdater(logger, goalContract, signer, ledgerRepo, envVars.txTimeout),
		Sessions:  sessionRepo,
		Wallets:   walletRepo,
	}
	if envVars.subgraphUrl != "" {
		deps.Indexer = indexer.NewSubgraphClient(logger, envVars.subgraphUrl)
	}
	if envVars.reminderFunctionArn != "" && envVars.schedulerRoleArn != "" {
		deps.Reminder = utils.NewDeadlineReminder(logger, scheduler.NewFromConfig(cfg), envVars.reminderFunctionArn, envVars.schedulerRoleArn)
	}

	handler, err := NewHandler(logger, agent.NewDispatcher(logger, deps), linebotClient)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.EventHandler)
}
