// Package telegram is a minimal Bot API client: long-poll updates in,
// messages and inline keyboards out.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"monitorbot/internal/domain"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	// longPollSeconds is the server-side getUpdates hold time. The HTTP
	// client timeout must exceed it.
	longPollSeconds = 25
	retryDelay      = 3 * time.Second
)

// apiResponse is the Bot API envelope around every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type message struct {
	MessageID int    `json:"message_id"`
	From      *user  `json:"from"`
	Chat      chat   `json:"chat"`
	Text      string `json:"text"`
}

type user struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
}

type chat struct {
	ID int64 `json:"id"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	From    *user    `json:"from"`
	Message *message `json:"message"`
	Data    string   `json:"data"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

// Client talks to the Telegram Bot API for a single bot token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger

	offset int64 // next update id to request; touched only by Poll
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(token string, log *slog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram: token must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: (longPollSeconds + 10) * time.Second},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Poll long-polls getUpdates and pushes converted events into events until
// ctx is cancelled. Transient API failures are logged and retried after a
// short delay; Poll only returns on cancellation.
func (c *Client) Poll(ctx context.Context, events chan<- domain.Event) error {
	for {
		updates, err := c.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("getUpdates failed, retrying", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			ev, ok := toEvent(u)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case events <- ev:
			}
		}
	}
}

func toEvent(u update) (domain.Event, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		cq := u.CallbackQuery
		ev := domain.Event{
			Kind:       domain.EventCallback,
			Identity:   cq.From.ID,
			Chat:       cq.From.ID,
			FirstName:  cq.From.FirstName,
			CallbackID: cq.ID,
			Payload:    cq.Data,
		}
		if cq.Message != nil {
			ev.Chat = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
		}
		return ev, true
	case u.Message != nil && u.Message.From != nil && !u.Message.From.IsBot && u.Message.Text != "":
		m := u.Message
		return domain.Event{
			Kind:      domain.EventMessage,
			Identity:  m.From.ID,
			Chat:      m.Chat.ID,
			FirstName: m.From.FirstName,
			Text:      m.Text,
		}, true
	default:
		return domain.Event{}, false
	}
}

func (c *Client) getUpdates(ctx context.Context) ([]update, error) {
	payload := map[string]any{
		"offset":          c.offset,
		"timeout":         longPollSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Send delivers a plain text message to chat.
func (c *Client) Send(ctx context.Context, chat int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chat,
		"text":    text,
	}, nil)
}

// SendChoices delivers text with one inline button per row; each button's
// payload comes back verbatim in the resulting callback event.
func (c *Client) SendChoices(ctx context.Context, chat int64, text string, choices []domain.Choice) error {
	rows := make([][]inlineKeyboardButton, 0, len(choices))
	for _, ch := range choices {
		rows = append(rows, []inlineKeyboardButton{{Text: ch.Label, CallbackData: ch.Payload}})
	}
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":      chat,
		"text":         text,
		"reply_markup": inlineKeyboardMarkup{InlineKeyboard: rows},
	}, nil)
}

// Edit replaces the text of a previously sent message, dropping its keyboard.
func (c *Client) Edit(ctx context.Context, chat int64, messageID int, text string) error {
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chat,
		"message_id": messageID,
		"text":       text,
	}, nil)
}

// AckCallback answers a callback query so the client stops showing a spinner.
func (c *Client) AckCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
	}, nil)
}

func (c *Client) methodURL(method string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/bot" + c.token + "/" + method
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s request: %w", method, err)
	}

	url := c.methodURL(method)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return fmt.Errorf("telegram: create %s request: %w", method, reqErr)
	}
	req.Header.Set("Content-Type", "application/json")

	res, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("telegram: %s request failed: %w", method, doErr)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var envelope apiResponse
	if decErr := json.Unmarshal(raw, &envelope); decErr != nil {
		return fmt.Errorf("telegram: decode %s response: %w", method, decErr)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram: %s returned status %d: %s", method, res.StatusCode, envelope.Description)
	}
	if out != nil {
		if decErr := json.Unmarshal(envelope.Result, out); decErr != nil {
			return fmt.Errorf("telegram: decode %s result: %w", method, decErr)
		}
	}
	return nil
}
