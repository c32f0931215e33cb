// Package adk talks to an agent development kit API server: it creates a
// conversation session and runs a single agent turn against it.
package adk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL string
	AppName string
	UserID  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	appName    string
	userID     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.AppName == "" {
		cfg.AppName = "grant_research_agent"
	}
	if cfg.UserID == "" {
		cfg.UserID = "ui_user"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		appName:    cfg.AppName,
		userID:     cfg.UserID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   executor,
	}
}

type messagePart struct {
	Text string `json:"text"`
}

type message struct {
	Role  string        `json:"role"`
	Parts []messagePart `json:"parts"`
}

type runRequest struct {
	SessionID  string  `json:"session_id"`
	AppName    string  `json:"app_name"`
	UserID     string  `json:"user_id"`
	NewMessage message `json:"new_message"`
}

type event struct {
	Content *struct {
		Parts []messagePart `json:"parts"`
	} `json:"content"`
}

// Run sends one message to the named agent and returns the aggregated text of
// the agent's events.
func (c *Client) Run(ctx context.Context, agent, text string) (string, error) {
	var out string
	call := func(ctx context.Context) error {
		sessionID := "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if err := c.createSession(ctx, sessionID); err != nil {
			return err
		}
		resp, err := c.run(ctx, sessionID, agentMessage(agent, text))
		if err != nil {
			return err
		}
		out = resp
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "adk.run."+agent, call, classifyADKError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("adk.run", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("adk run %s: empty agent response", agent)
	}
	return out, nil
}

func agentMessage(agent, text string) string {
	if agent == "" {
		return text
	}
	return "[AGENT:" + agent + "]\n" + text
}

// createSession registers the conversation. A 4xx answer (typically an existing
// session) is not fatal; the run call decides.
func (c *Client) createSession(ctx context.Context, sessionID string) error {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions/%s",
		url.PathEscape(c.appName), url.PathEscape(c.userID), url.PathEscape(sessionID))
	err := c.postJSON(ctx, path, map[string]any{}, nil, "create_session")
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
		return nil
	}
	return err
}

func (c *Client) run(ctx context.Context, sessionID, text string) (string, error) {
	req := runRequest{
		SessionID: sessionID,
		AppName:   c.appName,
		UserID:    c.userID,
		NewMessage: message{
			Role:  "user",
			Parts: []messagePart{{Text: text}},
		},
	}
	var raw json.RawMessage
	if err := c.postJSON(ctx, "/run", req, &raw, "run"); err != nil {
		return "", err
	}
	return aggregateText(raw)
}

// aggregateText accepts either an event list or a single object carrying a
// text/response field.
func aggregateText(raw json.RawMessage) (string, error) {
	var events []event
	if err := json.Unmarshal(raw, &events); err == nil {
		var pieces []string
		for _, ev := range events {
			if ev.Content == nil || len(ev.Content.Parts) == 0 {
				continue
			}
			if t := strings.TrimSpace(ev.Content.Parts[0].Text); t != "" {
				pieces = append(pieces, t)
			}
		}
		return strings.Join(pieces, "\n"), nil
	}

	var single struct {
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", errors.New("decode run response: neither an event list nor a text object")
	}
	if single.Text != "" {
		return single.Text, nil
	}
	return single.Response, nil
}

// ExtractJSONObject returns the outermost {...} span of an agent answer, which
// is often wrapped in prose or code fences.
func ExtractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}

// Ask runs an operation prompt and decodes the JSON answer into out.
func (c *Client) Ask(ctx context.Context, operation domain.Operation, payload any, out any) error {
	agent, prompt, err := BuildPrompt(operation, payload)
	if err != nil {
		return err
	}
	text, err := c.Run(ctx, agent, prompt)
	if err != nil {
		return err
	}
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return fmt.Errorf("adk %s: answer contains no JSON object", operation)
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("adk %s: parse answer: %w", operation, err)
	}
	return nil
}
