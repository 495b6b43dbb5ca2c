package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lexipal/internal/models"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const learnedWordsQuery = `query LearnedWords($user: Bytes!) {
  vocabLearneds(where: {user: $user}, orderBy: blockTimestamp, orderDirection: desc, first: 1000) {
    word
    progress
    goalId
    blockTimestamp
  }
}`

// IndexerAPI lists the VocabLearned events of a user.
type IndexerAPI interface {
	LearnedWords(ctx context.Context, user string) ([]models.LearnedWord, error)
}

type SubgraphClient struct {
	logger     *logrus.Entry
	httpClient *http.Client
	url        string
}

func NewSubgraphClient(logger *logrus.Entry, url string) *SubgraphClient {
	return &SubgraphClient{
		logger:     logger,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		url:        url,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type learnedWordsResponse struct {
	Data struct {
		VocabLearneds []vocabLearned `json:"vocabLearneds"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// The Graph serialises BigInt fields as strings.
type vocabLearned struct {
	Word           string      `json:"word"`
	Progress       json.Number `json:"progress"`
	GoalID         string      `json:"goalId"`
	BlockTimestamp string      `json:"blockTimestamp"`
}

// LearnedWords returns the latest event per word, newest first.
func (c *SubgraphClient) LearnedWords(ctx context.Context, user string) ([]models.LearnedWord, error) {
	body, err := json.Marshal(graphqlRequest{
		Query:     learnedWordsQuery,
		Variables: map[string]any{"user": strings.ToLower(user)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode subgraph query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create subgraph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subgraph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("subgraph returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out learnedWordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding subgraph response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("subgraph error: %s", out.Errors[0].Message)
	}

	words := latestPerWord(out.Data.VocabLearneds)
	c.logger.WithFields(logrus.Fields{
		"user":  user,
		"words": len(words),
	}).Debug("Fetched learned words")
	return words, nil
}

func latestPerWord(events []vocabLearned) []models.LearnedWord {
	seen := make(map[string]bool, len(events))
	words := make([]models.LearnedWord, 0, len(events))
	for _, e := range events {
		key := strings.ToLower(e.Word)
		if seen[key] {
			continue
		}
		seen[key] = true
		progress, _ := e.Progress.Int64()
		ts, _ := strconv.ParseInt(e.BlockTimestamp, 10, 64)
		words = append(words, models.LearnedWord{
			Word:           key,
			Progress:       int(progress),
			GoalID:         e.GoalID,
			BlockTimestamp: ts,
		})
	}
	return words
}
