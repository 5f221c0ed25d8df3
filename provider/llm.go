package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"arena/game"
)

// ModelConfig holds the settings shared by all model-backed deciders.
type ModelConfig struct {
	BaseURL     string
	APIKey      string
	Temperature float64
}

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Model asks a language model to pick a move: it serializes the state and
// the indexed legal-move list into a prompt, calls an OpenAI-compatible
// chat-completions endpoint, and parses the reply. Any transport or parse
// failure is reported as a decision error, never a panic.
type Model struct {
	model  string
	cfg    ModelConfig
	client *http.Client
}

func NewModel(model string, cfg ModelConfig) *Model {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &Model{
		model:  model,
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (m *Model) Name() string { return m.model }

const systemPrompt = `You are an expert board game player. You will be given the current game state and a list of legal actions.

Your task is to choose the best action from the legal actions list.

You MUST respond with ONLY a valid JSON object in this exact format:
{"action_index": 0, "reasoning": "Brief explanation"}

Where:
- action_index: An integer from 0 to (number of legal actions - 1)
- reasoning: A brief string explaining your choice

Do not include any text before or after the JSON object.`

func (m *Model) Decide(ctx context.Context, state game.State, legal []game.Move) (Decision, error) {
	prompt, err := buildPrompt(state, legal)
	if err != nil {
		return Decision{}, fmt.Errorf("formatting prompt: %w", err)
	}

	content, err := m.callChat(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return Decision{}, fmt.Errorf("model %s: %w", m.model, err)
	}

	index, reasoning, err := parseDecision(content, len(legal))
	if err != nil {
		return Decision{}, fmt.Errorf("model %s: %w", m.model, err)
	}
	return Decision{Move: legal[index], Rationale: reasoning}, nil
}

// buildPrompt renders the state snapshot and the indexed legal actions.
func buildPrompt(state game.State, legal []game.Move) (string, error) {
	snapshot, err := json.MarshalIndent(state.Snapshot(), "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("=== CURRENT GAME STATE ===\n")
	b.WriteString(fmt.Sprintf("You are playing side: %s\n", state.Player()))
	b.Write(snapshot)
	b.WriteString("\n\n=== LEGAL ACTIONS ===\n")
	for i, move := range legal {
		b.WriteString(fmt.Sprintf("%d: %s\n", i, move))
	}
	b.WriteString("\nChoose the best action by its index number.")
	return b.String(), nil
}

// === request/response types ===

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
	maxDelay   = 10 * time.Second
)

// callChat posts a chat-completions request, retrying transport failures and
// rate limits with exponential backoff.
func (m *Model) callChat(ctx context.Context, messages []chatMessage) (string, error) {
	buf, err := json.Marshal(chatRequest{
		Model:       m.model,
		Messages:    messages,
		Temperature: m.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	delay := baseDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			m.cfg.BaseURL+"/chat/completions", bytes.NewReader(buf))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limited (429), attempt %d/%d", attempt+1, maxRetries+1)
			continue
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return "", fmt.Errorf("chat completion status: %s", resp.Status)
		}

		var cr chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			resp.Body.Close()
			return "", err
		}
		resp.Body.Close()

		if len(cr.Choices) == 0 {
			return "", fmt.Errorf("no choices returned")
		}
		return cr.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// === reply parsing ===

type modelReply struct {
	ActionIndex *int   `json:"action_index"`
	Reasoning   string `json:"reasoning"`
}

var (
	embeddedJSON = regexp.MustCompile(`\{[^{}]*"action_index"[^{}]*\}`)
	bareNumber   = regexp.MustCompile(`\b(\d+)\b`)
)

// parseDecision extracts an action index and reasoning from a model reply.
// Models add stray text and markdown fences despite instructions, so parsing
// is lenient: direct JSON first, then an embedded JSON object, then a bare
// number. An index outside [0, count) is an error.
func parseDecision(content string, count int) (int, string, error) {
	cleaned := stripFences(content)

	var reply modelReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil || reply.ActionIndex == nil {
		if match := embeddedJSON.FindString(cleaned); match != "" {
			if err := json.Unmarshal([]byte(match), &reply); err == nil && reply.ActionIndex != nil {
				log.Warn().Msg("recovered action_index from embedded JSON object")
			}
		}
	}
	if reply.ActionIndex == nil {
		if match := bareNumber.FindStringSubmatch(cleaned); match != nil {
			index, _ := strconv.Atoi(match[1])
			log.Warn().Int("index", index).Msg("recovered bare action index from reply")
			reply.ActionIndex = &index
			reply.Reasoning = "extracted number from reply"
		}
	}
	if reply.ActionIndex == nil {
		return 0, "", fmt.Errorf("unparseable reply: %q", truncate(content, 200))
	}

	index := *reply.ActionIndex
	if index < 0 || index >= count {
		return 0, "", fmt.Errorf("action index %d out of range [0, %d)", index, count)
	}
	return index, reply.Reasoning, nil
}

// stripFences removes the markdown code fences some models wrap around JSON.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
