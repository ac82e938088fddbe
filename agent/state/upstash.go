// Package state maps a contact to its live assistant thread. All backends
// implement first-writer-wins claiming so concurrent webhook deliveries for
// one contact converge on a single thread.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

const (
	defaultKeyPrefix     = "agenda:thread:"
	maxResponseSizeBytes = 1 << 20
)

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type UpstashOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) UpstashOption {
	return func(s *UpstashRedisStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithHTTPClient(client *http.Client) UpstashOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore keeps the contact→thread map in Upstash Redis via its
// REST interface. Claim relies on SET NX for atomicity: whichever delivery
// writes first owns the thread, and later claimants read the winner back.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
}

var _ contractx.ThreadStore = (*UpstashRedisStore)(nil)

type restResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...UpstashOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *UpstashRedisStore) Get(ctx context.Context, contactID string) (string, error) {
	key, err := s.redisKey(contactID)
	if err != nil {
		return "", err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return "", err
	}

	threadID, ok := decodeString(resp.Result)
	if !ok {
		return "", contractx.ErrThreadNotFound
	}
	return threadID, nil
}

func (s *UpstashRedisStore) Claim(ctx context.Context, contactID, threadID string) (string, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", errors.New("thread id is empty")
	}
	key, err := s.redisKey(contactID)
	if err != nil {
		return "", err
	}

	resp, err := s.exec(ctx, []any{"SET", key, threadID, "NX"})
	if err != nil {
		return "", err
	}
	if _, ok := decodeString(resp.Result); ok {
		// "OK": our write landed first.
		return threadID, nil
	}

	// Null reply: another delivery claimed the contact before us.
	winner, err := s.Get(ctx, contactID)
	if err != nil {
		return "", fmt.Errorf("read winning thread: %w", err)
	}
	return winner, nil
}

func (s *UpstashRedisStore) redisKey(contactID string) (string, error) {
	trimmed := strings.TrimSpace(contactID)
	if trimmed == "" {
		return "", errors.New("contact id is empty")
	}
	return s.keyPrefix + trimmed, nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	var value string
	if err := json.Unmarshal(trimmed, &value); err != nil || value == "" {
		return "", false
	}
	return value, true
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*restResponse, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed restResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}
