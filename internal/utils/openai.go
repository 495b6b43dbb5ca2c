package utils

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v2"
)

//go:embed prompt/*.yaml
var promptFS embed.FS

const DefaultModel = "gpt-4.1-mini"

var ErrEmptyCompletion = errors.New("empty completion")

type ParserPrompt struct {
	SystemPrompt string `yaml:"system_prompt"`
	UserPrompt   string `yaml:"user_prompt"`
}

func loadPrompt(name string) (ParserPrompt, error) {
	data, err := promptFS.ReadFile("prompt/" + name + ".yaml")
	if err != nil {
		return ParserPrompt{}, fmt.Errorf("error reading prompt %s: %w", name, err)
	}
	var prompt ParserPrompt
	if err := yaml.Unmarshal(data, &prompt); err != nil {
		return ParserPrompt{}, fmt.Errorf("error parsing prompt yaml %s: %w", name, err)
	}
	return prompt, nil
}

// render replaces {{.Key}} placeholders in the user prompt in a single
// pass; text substituted from vars is never expanded again.
func (p ParserPrompt) render(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{."+k+"}}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(p.UserPrompt)
}

type EvaluationKind string

const (
	EvaluationDefinition EvaluationKind = "definition"
	EvaluationSentence   EvaluationKind = "sentence"
)

type Evaluation struct {
	IsCorrect   bool   `json:"isCorrect" jsonschema:"whether the student's answer is acceptable"`
	Feedback    string `json:"feedback" jsonschema:"short feedback addressed to the student"`
	Explanation string `json:"explanation" jsonschema:"the correct meaning or a corrected example"`
}

type MultipleChoiceResponse struct {
	Word           string   `json:"word" jsonschema:"the word being tested"`
	CorrectMeaning string   `json:"correctMeaning" jsonschema:"the correct meaning, rephrased"`
	Options        []string `json:"options" jsonschema:"four options, the first one is the correct meaning"`
}

type GoalSuggestion struct {
	TargetVocab  int    `json:"targetVocab" jsonschema:"number of words to learn"`
	DurationDays int    `json:"durationDays" jsonschema:"number of days for the goal"`
	Difficulty   int    `json:"difficulty" jsonschema:"word difficulty from 1 to 5"`
	StakeEth     string `json:"stakeEth" jsonschema:"stake in ETH as a decimal string"`
	Reason       string `json:"reason" jsonschema:"one sentence explaining the suggestion"`
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one remembered message of an assistant conversation.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

type OpenaiAPI interface {
	Evaluate(ctx context.Context, kind EvaluationKind, word, meaning, answer string) (Evaluation, error)
	GenerateMultipleChoice(ctx context.Context, word, meaning string) (MultipleChoiceResponse, error)
	SuggestGoal(ctx context.Context, description string) (GoalSuggestion, error)
	Chat(ctx context.Context, history []ChatTurn, input string) (string, error)
}

// structuredOutput is a JSON schema sent to the model as a strict response
// format and checked again against the reply.
type structuredOutput struct {
	name     string
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

func newStructuredOutput[T any](name string) (*structuredOutput, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("error building %s schema: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("error resolving %s schema: %w", name, err)
	}
	return &structuredOutput{name: name, schema: schema, resolved: resolved}, nil
}

func (s *structuredOutput) responseFormat() *openai.ChatCompletionResponseFormat {
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   s.name,
			Schema: s.schema,
			Strict: true,
		},
	}
}

// decode validates content against the schema before unmarshalling it.
func decode[T any](s *structuredOutput, content string) (T, error) {
	var out T
	var instance any
	if err := json.Unmarshal([]byte(content), &instance); err != nil {
		return out, fmt.Errorf("error unmarshalling %s response: %w", s.name, err)
	}
	if err := s.resolved.Validate(instance); err != nil {
		return out, fmt.Errorf("%s response does not match schema: %w", s.name, err)
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, fmt.Errorf("error unmarshalling %s response: %w", s.name, err)
	}
	return out, nil
}

type OpenaiClient struct {
	client  *openai.Client
	model   string
	prompts map[string]ParserPrompt

	evaluation     *structuredOutput
	multipleChoice *structuredOutput
	goal           *structuredOutput
}

func NewOpenAIClient(apiKey string, baseUrl string, model string) (OpenaiAPI, error) {
	config := openai.DefaultConfig(apiKey)
	if baseUrl != "" {
		config.BaseURL = baseUrl
	}
	if model == "" {
		model = DefaultModel
	}

	c := &OpenaiClient{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		prompts: make(map[string]ParserPrompt),
	}
	for _, name := range []string{"definition_evaluator", "sentence_evaluator", "multiple_choice_generator", "goal_suggester", "assistant"} {
		prompt, err := loadPrompt(name)
		if err != nil {
			return nil, err
		}
		c.prompts[name] = prompt
	}

	var err error
	if c.evaluation, err = newStructuredOutput[Evaluation]("quiz_evaluation"); err != nil {
		return nil, err
	}
	if c.multipleChoice, err = newStructuredOutput[MultipleChoiceResponse]("multiple_choice_question"); err != nil {
		return nil, err
	}
	if c.goal, err = newStructuredOutput[GoalSuggestion]("goal_suggestion"); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *OpenaiClient) Evaluate(ctx context.Context, kind EvaluationKind, word, meaning, answer string) (Evaluation, error) {
	name := "definition_evaluator"
	if kind == EvaluationSentence {
		name = "sentence_evaluator"
	}
	prompt := c.prompts[name]
	content, err := c.complete(ctx, prompt.SystemPrompt, prompt.render(map[string]string{
		"Word":    word,
		"Meaning": meaning,
		"Answer":  answer,
	}), c.evaluation)
	if err != nil {
		return Evaluation{}, err
	}
	return decode[Evaluation](c.evaluation, content)
}

func (c *OpenaiClient) GenerateMultipleChoice(ctx context.Context, word, meaning string) (MultipleChoiceResponse, error) {
	prompt := c.prompts["multiple_choice_generator"]
	content, err := c.complete(ctx, prompt.SystemPrompt, prompt.render(map[string]string{
		"Word":    word,
		"Meaning": meaning,
	}), c.multipleChoice)
	if err != nil {
		return MultipleChoiceResponse{}, err
	}
	return decode[MultipleChoiceResponse](c.multipleChoice, content)
}

func (c *OpenaiClient) SuggestGoal(ctx context.Context, description string) (GoalSuggestion, error) {
	prompt := c.prompts["goal_suggester"]
	content, err := c.complete(ctx, prompt.SystemPrompt, prompt.render(map[string]string{
		"Description": description,
	}), c.goal)
	if err != nil {
		return GoalSuggestion{}, err
	}
	return decode[GoalSuggestion](c.goal, content)
}

func (c *OpenaiClient) Chat(ctx context.Context, history []ChatTurn, input string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.prompts["assistant"].SystemPrompt,
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenaiClient) complete(ctx context.Context, system, user string, format *structuredOutput) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		ResponseFormat: format.responseFormat(),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
