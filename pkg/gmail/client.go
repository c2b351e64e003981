package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

	// Messages older than this are not relevant for the current filing
	// season and are never listed.
	lookbackQuery = "newer_than:6m"

	maxListResults  = 100
	fetchConcurrent = 10
)

// Message is one mailbox message reduced to the fields the scanner needs.
type Message struct {
	ID      string
	From    string
	Subject string
	Date    time.Time
	Snippet string
	Read    bool
	Starred bool
}

// APIError is a typed Gmail API failure carrying the upstream status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gmail api status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gmail api status %d", e.StatusCode)
}

// IsAuthError reports whether the failure means the access token is invalid
// or expired.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client calls the Gmail REST API with a caller-supplied access token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option overrides client defaults.
type Option func(*Client)

// WithBaseURL points the client at another endpoint; tests use a local server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// NewClient builds a Gmail client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRecentMessages lists messages inside the lookback window and fetches
// each one's metadata concurrently. Individual message fetch failures are
// skipped; list failures are returned.
func (c *Client) ListRecentMessages(ctx context.Context, accessToken string) ([]Message, error) {
	path := fmt.Sprintf("/users/me/messages?q=%s&maxResults=%d", url.QueryEscape(lookbackQuery), maxListResults)
	var listResp messageListResponse
	if err := c.getJSON(ctx, accessToken, path, &listResp); err != nil {
		return nil, err
	}
	if len(listResp.Messages) == 0 {
		return []Message{}, nil
	}

	var mu sync.Mutex
	messages := make([]Message, 0, len(listResp.Messages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrent)
	for _, ref := range listResp.Messages {
		id := ref.ID
		if id == "" {
			continue
		}
		g.Go(func() error {
			msg, err := c.GetMessage(gctx, accessToken, id)
			if err != nil {
				// A single unreadable message should not sink the
				// whole fetch, but auth failures will repeat for
				// every message and must surface.
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.IsAuthError() {
					return err
				}
				return nil
			}
			mu.Lock()
			messages = append(messages, msg)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage fetches one message's headers, snippet, and label flags.
func (c *Client) GetMessage(ctx context.Context, accessToken, id string) (Message, error) {
	path := fmt.Sprintf("/users/me/messages/%s?format=metadata", url.PathEscape(id))
	var resp messageResponse
	if err := c.getJSON(ctx, accessToken, path, &resp); err != nil {
		return Message{}, err
	}
	return parseMessage(resp), nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp apiErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		_ = json.Unmarshal(raw, &errResp)
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error.Message}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gmail response: %w", err)
	}
	return nil
}

func parseMessage(resp messageResponse) Message {
	msg := Message{
		ID:      resp.ID,
		From:    "Unknown Sender",
		Subject: "No Subject",
		Snippet: resp.Snippet,
		Read:    true,
	}
	for _, h := range resp.Payload.Headers {
		switch h.Name {
		case "Subject":
			if h.Value != "" {
				msg.Subject = h.Value
			}
		case "From":
			if h.Value != "" {
				msg.From = h.Value
			}
		case "Date":
			if t, err := mail.ParseDate(h.Value); err == nil {
				msg.Date = t.UTC()
			}
		}
	}
	if msg.Date.IsZero() && resp.InternalDate != "" {
		if millis, err := strconv.ParseInt(resp.InternalDate, 10, 64); err == nil {
			msg.Date = time.UnixMilli(millis).UTC()
		}
	}
	for _, label := range resp.LabelIDs {
		switch label {
		case "UNREAD":
			msg.Read = false
		case "STARRED":
			msg.Starred = true
		}
	}
	return msg
}

// Gmail REST response types. internalDate is a string of epoch millis.

type messageListResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type messageResponse struct {
	ID           string   `json:"id"`
	Snippet      string   `json:"snippet"`
	LabelIDs     []string `json:"labelIds"`
	InternalDate string   `json:"internalDate"`
	Payload      struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
