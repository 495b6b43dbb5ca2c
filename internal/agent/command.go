package agent

import (
	"errors"
	"fmt"
	"lexipal/internal/contract"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandUnknown
	CommandHelp
	CommandProgress
	CommandLearn
	CommandQuiz
	CommandSkip
	CommandUpdate
	CommandGoal
	CommandCheckGoal
	CommandClaim
	CommandBotFund
	CommandWallet
)

// commandNames is matched against the first token exactly; prefixes are
// case-sensitive.
var commandNames = map[string]CommandKind{
	"/help":      CommandHelp,
	"/progress":  CommandProgress,
	"/learn":     CommandLearn,
	"/quiz":      CommandQuiz,
	"/skip":      CommandSkip,
	"/update":    CommandUpdate,
	"/goal":      CommandGoal,
	"/checkgoal": CommandCheckGoal,
	"/claim":     CommandClaim,
	"/botfund":   CommandBotFund,
	"/wallet":    CommandWallet,
}

const DefaultGoalDifficulty uint8 = 1

// GoalRequest is the payload of /goal. Exactly one of Proposal and
// Description is set; both empty means "show my goal".
type GoalRequest struct {
	Proposal    *GoalProposal
	Description string
}

type GoalProposal struct {
	TargetVocab  uint64
	DurationDays uint64
	Stake        *big.Int // wei
	Difficulty   uint8
}

// Command is an inbound message parsed once at the dispatcher boundary.
type Command struct {
	Kind CommandKind
	Name string
	// Word is the argument of /learn, /quiz, /progress and /update.
	Word    string
	Goal    GoalRequest
	Address *common.Address
	// Err is a usage problem with the arguments; the handler is not run.
	Err error
}

var (
	errMissingWord   = errors.New("missing word")
	errInvalidGoal   = errors.New("invalid goal arguments")
	errInvalidWallet = errors.New("invalid wallet address")
)

// ParseCommand recognizes slash commands. Any text that does not start with
// "/" is CommandNone.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{Kind: CommandNone}
	}

	fields := strings.Fields(text)
	name := fields[0]
	args := fields[1:]
	kind, ok := commandNames[name]
	if !ok {
		return Command{Kind: CommandUnknown, Name: name}
	}

	cmd := Command{Kind: kind, Name: name}
	switch kind {
	case CommandLearn, CommandQuiz:
		if len(args) > 0 {
			cmd.Word = strings.ToLower(args[0])
		}
	case CommandProgress, CommandUpdate:
		if len(args) == 0 {
			cmd.Err = errMissingWord
			break
		}
		cmd.Word = strings.ToLower(args[0])
	case CommandGoal:
		cmd.Goal, cmd.Err = parseGoal(args)
	case CommandWallet:
		if len(args) == 0 {
			break
		}
		if !common.IsHexAddress(args[0]) {
			cmd.Err = fmt.Errorf("%w: %q", errInvalidWallet, args[0])
			break
		}
		addr := common.HexToAddress(args[0])
		cmd.Address = &addr
	}
	return cmd
}

// parseGoal accepts `<target> <days> <stake> [difficulty]`; anything that
// does not start with a number is a free-text description.
func parseGoal(args []string) (GoalRequest, error) {
	if len(args) == 0 {
		return GoalRequest{}, nil
	}
	target, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return GoalRequest{Description: strings.Join(args, " ")}, nil
	}
	if len(args) < 3 || len(args) > 4 {
		return GoalRequest{}, errInvalidGoal
	}

	days, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil || days == 0 || target == 0 {
		return GoalRequest{}, errInvalidGoal
	}
	stake, err := contract.ParseEther(args[2])
	if err != nil {
		return GoalRequest{}, fmt.Errorf("%w: %v", errInvalidGoal, err)
	}

	difficulty := DefaultGoalDifficulty
	if len(args) == 4 {
		d, err := strconv.ParseUint(args[3], 10, 8)
		if err != nil || d < 1 || d > 5 {
			return GoalRequest{}, fmt.Errorf("%w: difficulty must be 1-5", errInvalidGoal)
		}
		difficulty = uint8(d)
	}

	return GoalRequest{Proposal: &GoalProposal{
		TargetVocab:  target,
		DurationDays: days,
		Stake:        stake,
		Difficulty:   difficulty,
	}}, nil
}
