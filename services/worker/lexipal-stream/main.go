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
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "lexipal-stream"

	defaultSQLitePath = "data/lexipal.db"
	defaultSessionTTL = 7 * 24 * time.Hour
	sweepInterval     = 10 * time.Minute
)

type EnvVars struct {
	telegramBotToken string
	openaiBaseUrl    string
	openaiApiKey     string
	openaiModel      string
	rpcUrl           string
	network          contract.Network
	contractAddress  common.Address
	signerPrivateKey string
	botPrivateKey    string
	subgraphUrl      string
	txTimeout        time.Duration
	handleTimeout    time.Duration
	sqlitePath       string
	workers          int
	sessionTTL       time.Duration
}

func getEnvironmentVariables() (envVars *EnvVars, err error) {
	telegramBotToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if telegramBotToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is not set")
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

	txTimeout := progress.DefaultTxTimeout
	if v := os.Getenv("TX_TIMEOUT"); v != "" {
		if txTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("TX_TIMEOUT: %w", err)
		}
	}

	// A message may wait for one mined transaction, so it gets that much
	// longer than the transaction itself.
	handleTimeout := txTimeout + agent.DefaultHandleTimeout
	if v := os.Getenv("HANDLE_TIMEOUT"); v != "" {
		if handleTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("HANDLE_TIMEOUT: %w", err)
		}
	}

	sessionTTL := defaultSessionTTL
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if sessionTTL, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("SESSION_TTL: %w", err)
		}
	}

	workers := 4
	if v := os.Getenv("WORKERS"); v != "" {
		if workers, err = strconv.Atoi(v); err != nil || workers <= 0 {
			return nil, fmt.Errorf("WORKERS must be a positive integer, got %q", v)
		}
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = defaultSQLitePath
	}

	return &EnvVars{
		telegramBotToken: telegramBotToken,
		openaiBaseUrl:    os.Getenv("OPENAI_BASE_URL"),
		openaiApiKey:     openaiApiKey,
		openaiModel:      os.Getenv("OPENAI_MODEL"),
		rpcUrl:           rpcUrl,
		network:          network,
		contractAddress:  common.HexToAddress(contractAddress),
		signerPrivateKey: signerPrivateKey,
		botPrivateKey:    botPrivateKey,
		subgraphUrl:      os.Getenv("SUBGRAPH_URL"),
		txTimeout:        txTimeout,
		handleTimeout:    handleTimeout,
		sqlitePath:       sqlitePath,
		workers:          workers,
		sessionTTL:       sessionTTL,
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

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).Warn("Failed to load .env")
	}

	envVars, err := getEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Error("Failed to get environment variables")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, envVars); err != nil {
		logger.WithError(err).Error("Stream worker stopped")
		os.Exit(1)
	}
	logger.Info("Stream worker stopped")
}

func run(ctx context.Context, logger *logrus.Entry, envVars *EnvVars) error {
	openaiClient, err := utils.NewOpenAIClient(envVars.openaiApiKey, envVars.openaiBaseUrl, envVars.openaiModel)
	if err != nil {
		return err
	}

	vocabulary, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}

	store, err := repository.OpenSQLite(logger, envVars.sqlitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ethClient, err := ethclient.DialContext(ctx, envVars.rpcUrl)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	defer ethClient.Close()

	botKey, err := contract.ParsePrivateKey(envVars.botPrivateKey)
	if err != nil {
		return err
	}
	goalContract, err := contract.NewClient(logger, ethClient, envVars.contractAddress, envVars.network, botKey)
	if err != nil {
		return err
	}
	signer, err := contract.NewSigner(envVars.signerPrivateKey)
	if err != nil {
		return err
	}

	// The first connection also tells us the bot's own ID.
	first, err := utils.NewTelegramClient(envVars.telegramBotToken)
	if err != nil {
		return err
	}

	examiner := utils.NewExaminer(logger, openaiClient)
	deps := agent.Dependencies{
		Catalog:   vocabulary,
		Evaluator: examiner,
		Questions: examiner,
		Assistant: openaiClient,
		Contract:  goalContract,
		Progress:  progress.NewUpdater(logger, goalContract, signer, store, envVars.txTimeout),
		Sessions:  store,
		Wallets:   store,
		SelfID:    first.SelfID(),
	}
	if envVars.subgraphUrl != "" {
		deps.Indexer = indexer.NewSubgraphClient(logger, envVars.subgraphUrl)
	}
	dispatcher := agent.NewDispatcher(logger, deps)

	connect := func() (agent.Transport, error) {
		if first != nil {
			t := first
			first = nil
			return t, nil
		}
		t, err := utils.NewTelegramClient(envVars.telegramBotToken)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	pool := agent.NewKeyedPool(envVars.workers, 0)
	pool.Start(context.WithoutCancel(ctx))
	defer pool.Close()

	listener := agent.NewStreamListener(logger, connect, dispatcher, pool, agent.DefaultReconnectAttempts).
		WithHandleTimeout(envVars.handleTimeout)
	sweeper := NewSessionSweeper(logger, store, envVars.sessionTTL, sweepInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Run(ctx)
	})
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	logger.WithFields(logrus.Fields{
		"network":  envVars.network.ID,
		"contract": envVars.contractAddress.Hex(),
		"workers":  envVars.workers,
	}).Info("Stream worker started")
	return g.Wait()
}
