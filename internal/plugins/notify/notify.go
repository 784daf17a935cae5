// Package notify provides a post-render action that announces finished
// renders to a review server with a JSON webhook. Requests can be
// authenticated with OAuth2 client credentials. Register it with a blank
// import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/notify"
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/ferro-labs/review4d/internal/circuitbreaker"
	"github.com/ferro-labs/review4d/internal/logging"
	"github.com/ferro-labs/review4d/plugin"
)

// FactoryName is the name the action is registered under.
const FactoryName = "notify"

// Event is the value of Payload.Event.
const Event = "render.finished"

func init() {
	plugin.RegisterFactory(FactoryName, func() any {
		return &Notifier{Meta: plugin.Meta{Name: "Notify Review Server", Rank: 30}}
	})
}

// Payload is the JSON body posted to the review server.
type Payload struct {
	Event    string    `json:"event"`
	RenderID string    `json:"render_id,omitempty"`
	Renders  []Render  `json:"renders"`
	SentAt   time.Time `json:"sent_at"`
}

// Render describes one finished file.
type Render struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Config holds the webhook settings.
type Config struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	// OAuth2 client credentials; used when TokenURL is set.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Retries is how many extra attempts a failed delivery gets.
	Retries int
	// Consecutive failed deliveries before the notifier stops trying for
	// BreakerTimeout.
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// Notifier posts a Payload for each batch of renders.
type Notifier struct {
	plugin.Meta
	cfg     Config
	enabled bool
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// New returns a notifier for cfg.
func New(cfg Config) *Notifier {
	n := &Notifier{Meta: plugin.Meta{Name: "Notify Review Server", Rank: 30}, cfg: cfg}
	n.client = n.httpClient()
	n.breaker = circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerTimeout)
	return n
}

// Init configures the notifier. Options: url (required), headers, timeout,
// token_url, client_id, client_secret, scopes, retries, breaker_threshold,
// breaker_timeout, label, enabled.
func (n *Notifier) Init(config map[string]interface{}) error {
	str := func(key string) string {
		s, _ := config[key].(string)
		return s
	}
	cfg := Config{
		URL:          str("url"),
		TokenURL:     str("token_url"),
		ClientID:     str("client_id"),
		ClientSecret: str("client_secret"),
	}
	if cfg.URL == "" {
		return fmt.Errorf("url is required")
	}
	if raw, ok := config["headers"].(map[string]interface{}); ok {
		cfg.Headers = make(map[string]string, len(raw))
		for k, v := range raw {
			cfg.Headers[k] = fmt.Sprint(v)
		}
	}
	for key, d := range map[string]*time.Duration{"timeout": &cfg.Timeout, "breaker_timeout": &cfg.BreakerTimeout} {
		switch raw := config[key].(type) {
		case nil:
		case string:
			if raw == "" {
				continue
			}
			v, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*d = v
		default:
			return fmt.Errorf("%s: expected a duration string such as \"5s\", got %T", key, raw)
		}
	}
	for key, i := range map[string]*int{"retries": &cfg.Retries, "breaker_threshold": &cfg.BreakerThreshold} {
		var v int
		switch raw := config[key].(type) {
		case nil:
			continue
		case int:
			v = raw
		case float64:
			v = int(raw)
		default:
			return fmt.Errorf("%s: expected a number, got %T", key, raw)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
		*i = v
	}
	switch raw := config["scopes"].(type) {
	case nil:
	case []interface{}:
		for i, s := range raw {
			scope, ok := s.(string)
			if !ok {
				return fmt.Errorf("scopes[%d]: expected a string, got %T", i, s)
			}
			cfg.Scopes = append(cfg.Scopes, scope)
		}
	case []string:
		cfg.Scopes = append(cfg.Scopes, raw...)
	default:
		return fmt.Errorf("scopes: expected a list, got %T", raw)
	}
	if cfg.TokenURL != "" && (cfg.ClientID == "" || cfg.ClientSecret == "") {
		return fmt.Errorf("client_id and client_secret are required with token_url")
	}
	if v, ok := config["enabled"].(bool); ok {
		n.enabled = v
	}
	if label := str("label"); label != "" {
		n.Name = label
	}
	n.cfg = cfg
	n.client = n.httpClient()
	n.breaker = circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerTimeout)
	return nil
}

func (n *Notifier) httpClient() *http.Client {
	timeout := n.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if n.cfg.TokenURL == "" {
		return &http.Client{Timeout: timeout}
	}
	cc := &clientcredentials.Config{
		ClientID:     n.cfg.ClientID,
		ClientSecret: n.cfg.ClientSecret,
		TokenURL:     n.cfg.TokenURL,
		Scopes:       n.cfg.Scopes,
	}
	client := cc.Client(context.Background())
	client.Timeout = timeout
	return client
}

// Enabled reports whether the action is preselected.
func (n *Notifier) Enabled() bool { return n.enabled }

// Available reports whether a webhook URL is configured.
func (n *Notifier) Available() bool { return n.cfg.URL != "" }

// Execute posts one Payload listing renderPaths.
func (n *Notifier) Execute(ctx context.Context, renderPaths []string) error {
	payload := Payload{
		Event:    Event,
		RenderID: logging.RenderIDFromContext(ctx),
		Renders:  make([]Render, 0, len(renderPaths)),
		SentAt:   time.Now().UTC(),
	}
	for _, p := range renderPaths {
		payload.Renders = append(payload.Renders, Render{
			Path: p,
			Name: path.Base(strings.ReplaceAll(p, `\`, "/")),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if n.breaker == nil {
		n.breaker = circuitbreaker.New(n.cfg.BreakerThreshold, n.cfg.BreakerTimeout)
	}
	err = n.breaker.Do(ctx, func(ctx context.Context) error {
		return n.deliver(ctx, body)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("review server %s is failing, not notifying: %w", n.cfg.URL, err)
	}
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("notification sent", "url", n.cfg.URL, "renders", len(renderPaths))
	return nil
}

// deliver posts body, retrying transport errors and 5xx responses with
// exponential backoff.
func (n *Notifier) deliver(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= n.cfg.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			logging.FromContext(ctx).Info("retrying notification", "url", n.cfg.URL, "attempt", attempt+1)
		}

		retry, err := n.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return lastErr
}

// post sends one request and reports whether a failure is worth retrying.
func (n *Notifier) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode >= 500, fmt.Errorf("review server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return false, nil
}
