package agent

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		kind CommandKind
		word string
		err  error
	}{
		{text: "what does hello mean?", kind: CommandNone},
		{text: "  /help  ", kind: CommandHelp},
		{text: "/learn", kind: CommandLearn},
		{text: "/learn Hello", kind: CommandLearn, word: "hello"},
		{text: "/quiz world", kind: CommandQuiz, word: "world"},
		{text: "/skip", kind: CommandSkip},
		{text: "/progress", kind: CommandProgress, err: errMissingWord},
		{text: "/progress Journey", kind: CommandProgress, word: "journey"},
		{text: "/update", kind: CommandUpdate, err: errMissingWord},
		{text: "/update hello", kind: CommandUpdate, word: "hello"},
		{text: "/checkgoal", kind: CommandCheckGoal},
		{text: "/claim", kind: CommandClaim},
		{text: "/botfund", kind: CommandBotFund},
		{text: "/Learn", kind: CommandUnknown},
		{text: "/dance", kind: CommandUnknown},
		{text: "/wallet 0x123", kind: CommandWallet, err: errInvalidWallet},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd := ParseCommand(tt.text)
			if cmd.Kind != tt.kind {
				t.Errorf("expected kind %d, got %d", tt.kind, cmd.Kind)
			}
			if cmd.Word != tt.word {
				t.Errorf("expected word %q, got %q", tt.word, cmd.Word)
			}
			if tt.err == nil && cmd.Err != nil {
				t.Errorf("unexpected error: %v", cmd.Err)
			}
			if tt.err != nil && !errors.Is(cmd.Err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, cmd.Err)
			}
		})
	}
}

func TestParseWallet(t *testing.T) {
	cmd := ParseCommand("/wallet 0x00000000000000000000000000000000000000dd")
	if cmd.Err != nil || cmd.Address == nil {
		t.Fatalf("expected an address, got %+v", cmd)
	}
	if *cmd.Address != common.HexToAddress("0xdd") {
		t.Errorf("unexpected address %s", cmd.Address.Hex())
	}

	if cmd := ParseCommand("/wallet"); cmd.Err != nil || cmd.Address != nil {
		t.Errorf("expected a bare /wallet, got %+v", cmd)
	}
}

func TestParseGoal(t *testing.T) {
	t.Run("Proposal with default difficulty", func(t *testing.T) {
		cmd := ParseCommand("/goal 10 7 0.001")
		if cmd.Err != nil {
			t.Fatalf("unexpected error: %v", cmd.Err)
		}
		p := cmd.Goal.Proposal
		if p == nil {
			t.Fatal("expected a proposal")
		}
		if p.TargetVocab != 10 || p.DurationDays != 7 || p.Difficulty != DefaultGoalDifficulty {
			t.Errorf("unexpected proposal: %+v", p)
		}
		if p.Stake.Cmp(big.NewInt(1_000_000_000_000_000)) != 0 {
			t.Errorf("expected 0.001 ETH in wei, got %s", p.Stake)
		}
	})

	t.Run("Proposal with difficulty", func(t *testing.T) {
		cmd := ParseCommand("/goal 5 3 0.01 4")
		if cmd.Err != nil || cmd.Goal.Proposal == nil || cmd.Goal.Proposal.Difficulty != 4 {
			t.Errorf("unexpected command: %+v", cmd)
		}
	})

	t.Run("Description", func(t *testing.T) {
		cmd := ParseCommand("/goal I want to prepare for a trip")
		if cmd.Err != nil || cmd.Goal.Proposal != nil {
			t.Fatalf("unexpected command: %+v", cmd)
		}
		if cmd.Goal.Description != "I want to prepare for a trip" {
			t.Errorf("unexpected description %q", cmd.Goal.Description)
		}
	})

	t.Run("Show goal", func(t *testing.T) {
		cmd := ParseCommand("/goal")
		if cmd.Err != nil || cmd.Goal.Proposal != nil || cmd.Goal.Description != "" {
			t.Errorf("expected an empty goal request, got %+v", cmd)
		}
	})

	for _, text := range []string{
		"/goal 10",
		"/goal 10 7",
		"/goal 0 7 0.001",
		"/goal 10 0 0.001",
		"/goal 10 7 lots",
		"/goal 10 7 0.001 6",
		"/goal 10 7 0.001 0",
		"/goal 10 7 0.001 2 extra",
	} {
		t.Run(text, func(t *testing.T) {
			if cmd := ParseCommand(text); !errors.Is(cmd.Err, errInvalidGoal) {
				t.Errorf("expected errInvalidGoal, got %v", cmd.Err)
			}
		})
	}
}
