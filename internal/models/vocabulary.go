package models

import (
	"fmt"
	"strings"
)

type VocabularyWord struct {
	Word       string `yaml:"word" json:"word"`
	Meaning    string `yaml:"meaning" json:"meaning"`
	Difficulty uint8  `yaml:"difficulty" json:"difficulty"` // 1..5, as stored on-chain
}

// LearnedWord is one VocabLearned event as returned by the subgraph.
type LearnedWord struct {
	Word           string `json:"word"`
	Progress       int    `json:"progress"`
	GoalID         string `json:"goalId"`
	BlockTimestamp int64  `json:"blockTimestamp"`
}

func (w VocabularyWord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("【%s】\n", w.Word))
	sb.WriteString(fmt.Sprintf("Meaning: %s\n", w.Meaning))
	sb.WriteString(fmt.Sprintf("Difficulty: %d/5\n", w.Difficulty))
	return sb.String()
}

func FormatLearnedWords(words []LearnedWord) string {
	var sb strings.Builder
	sb.WriteString("📚 Your vocabulary\n\n")
	if len(words) == 0 {
		sb.WriteString("No words learned yet. Type /learn to start!")
		return sb.String()
	}
	for _, w := range words {
		marker := "📖"
		if w.Progress >= 3 {
			marker = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s: %d/3\n", marker, w.Word, w.Progress))
	}
	return sb.String()
}
