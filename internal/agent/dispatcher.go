package agent

import (
	"context"
	"errors"
	"lexipal/internal/catalog"
	"lexipal/internal/contract"
	"lexipal/internal/indexer"
	"lexipal/internal/models"
	"lexipal/internal/progress"
	"lexipal/internal/quiz"
	"lexipal/internal/utils"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// QuestionWriter builds the multiple choice question for the last stage.
type QuestionWriter interface {
	MultipleChoice(ctx context.Context, word, meaning string) *quiz.MultipleChoice
}

// ProgressRecorder is implemented by *progress.Updater.
type ProgressRecorder interface {
	ActiveGoal(ctx context.Context, user common.Address) (*big.Int, error)
	Record(ctx context.Context, user common.Address, word string, from uint8) (*progress.Result, error)
	Next(ctx context.Context, user common.Address, word string) (*progress.Result, error)
}

// ReminderScheduler is implemented by *utils.DeadlineReminder.
type ReminderScheduler interface {
	Schedule(ctx context.Context, userID, goalID string, deadline time.Time) error
}

type Dependencies struct {
	Catalog   *catalog.Catalog
	Evaluator quiz.Evaluator
	Questions QuestionWriter
	Assistant utils.OpenaiAPI
	Contract  contract.GoalContract
	Progress  ProgressRecorder
	Indexer   indexer.IndexerAPI
	Sessions  utils.SessionRepository
	Wallets   utils.WalletRepository
	// Reminder is optional; without it /checkgoal only reports.
	Reminder ReminderScheduler
	// SelfID is the bot's own sender ID on the transport.
	SelfID       string
	DedupWindow  int
	HistoryTurns int
}

// Dispatcher is the single entry point for inbound chat messages. Quiz state
// is kept per sender within a conversation. It is safe for concurrent use
// across conversations; messages of one conversation must
// be handed to it in order (see KeyedPool).
type Dispatcher struct {
	logger    *logrus.Entry
	catalog   *catalog.Catalog
	machine   *quiz.Machine
	questions QuestionWriter
	assistant utils.OpenaiAPI
	contract  contract.GoalContract
	calls     contract.Calls
	progress  ProgressRecorder
	indexer   indexer.IndexerAPI
	sessions  utils.SessionRepository
	wallets   utils.WalletRepository
	reminder  ReminderScheduler
	selfID    string
	dedup     *Deduper
	history   *History
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewDispatcher(logger *logrus.Entry, deps Dependencies) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		catalog:   deps.Catalog,
		machine:   quiz.NewMachine(deps.Catalog, deps.Evaluator),
		questions: deps.Questions,
		assistant: deps.Assistant,
		contract:  deps.Contract,
		calls: contract.Calls{
			Contract: deps.Contract.Address(),
			Network:  deps.Contract.Network(),
		},
		progress: deps.Progress,
		indexer:  deps.Indexer,
		sessions: deps.Sessions,
		wallets:  deps.Wallets,
		reminder: deps.Reminder,
		selfID:   deps.SelfID,
		dedup:    NewDeduper(deps.DedupWindow),
		history:  NewHistory(deps.HistoryTurns),
		now:      func() time.Time { return time.Now().UTC() },
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Handle processes one inbound message and returns the replies to send, in
// order. Failures of external services are turned into replies; Handle never
// returns an error to the transport loop.
func (d *Dispatcher) Handle(ctx context.Context, msg models.InboundMessage) []string {
	logger := d.logger.WithFields(logrus.Fields{
		"request_id":     uuid.NewString(),
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
		"senderId":       msg.SenderID,
	})

	if d.selfID != "" && msg.SenderID == d.selfID {
		return nil
	}
	if d.dedup.Seen(msg.ID) {
		logger.Info("Dropping duplicate message")
		return nil
	}

	cmd := ParseCommand(msg.Text)
	if cmd.Kind != CommandNone {
		logger = logger.WithField("command", cmd.Name)
	}
	logger.Info("Handling message")

	if cmd.Err != nil {
		logger.WithError(cmd.Err).Info("Invalid command arguments")
		return []string{usageFor(cmd)}
	}

	switch cmd.Kind {
	case CommandHelp:
		return []string{helpText}
	case CommandUnknown:
		return []string{unknownCommandText(cmd.Name)}
	case CommandProgress:
		return d.handleProgress(ctx, logger, msg, cmd.Word)
	case CommandLearn:
		return d.handleLearn(ctx, logger, msg, cmd.Word)
	case CommandQuiz:
		return d.handleQuiz(ctx, logger, msg, cmd.Word)
	case CommandSkip:
		return d.handleSkip(ctx, logger, msg)
	case CommandUpdate:
		return d.handleUpdate(ctx, logger, msg, cmd.Word)
	case CommandGoal:
		return d.handleGoal(ctx, logger, msg, cmd.Goal)
	case CommandCheckGoal:
		return d.handleCheckGoal(ctx, logger, msg)
	case CommandClaim:
		return d.handleClaim(ctx, logger, msg)
	case CommandBotFund:
		return d.handleBotFund(ctx, logger, msg)
	case CommandWallet:
		return d.handleWallet(ctx, logger, msg, cmd.Address)
	}

	state, err := d.sessions.GetSession(ctx, sessionKey(msg))
	if err != nil {
		logger.WithError(err).Error("Failed to load quiz session")
		return []string{apologyText}
	}
	if state != nil && state.Active {
		return d.handleAnswer(ctx, logger, msg, state)
	}
	return d.handleChat(ctx, logger, msg)
}

// sessionKey scopes quiz state to the sender, so members of a group chat
// each run their own quiz and answer only their own questions.
func sessionKey(msg models.InboundMessage) string {
	return quiz.SessionKey(msg.ConversationID, msg.SenderID)
}

func (d *Dispatcher) handleChat(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage) []string {
	reply, err := d.assistant.Chat(ctx, d.history.Get(msg.ConversationID), msg.Text)
	if err != nil {
		logger.WithError(err).Error("Assistant chat failed")
		return []string{apologyText}
	}
	d.history.Append(msg.ConversationID, msg.Text, reply)
	return []string{reply}
}

// userAddress resolves the wallet bound to the sender. The returned reply is
// set when the caller should stop and send it instead.
func (d *Dispatcher) userAddress(ctx context.Context, logger *logrus.Entry, userID string) (common.Address, string) {
	binding, err := d.wallets.GetWallet(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to load wallet binding")
		return common.Address{}, apologyText
	}
	if binding == nil || !common.IsHexAddress(binding.Address) {
		return common.Address{}, linkWalletText
	}
	return common.HexToAddress(binding.Address), ""
}

// activeGoal resolves the sender's wallet and active goal id.
func (d *Dispatcher) activeGoal(ctx context.Context, logger *logrus.Entry, userID string) (common.Address, *big.Int, string) {
	addr, reply := d.userAddress(ctx, logger, userID)
	if reply != "" {
		return addr, nil, reply
	}
	goalID, err := d.progress.ActiveGoal(ctx, addr)
	if errors.Is(err, progress.ErrNoActiveGoal) {
		return addr, nil, noGoalText
	}
	if err != nil {
		logger.WithError(err).Error("Failed to read active goal")
		return addr, nil, apologyText
	}
	return addr, goalID, ""
}

func (d *Dispatcher) pick(words []models.VocabularyWord) models.VocabularyWord {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return words[d.rng.Intn(len(words))]
}
