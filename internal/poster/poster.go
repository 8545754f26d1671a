// Package poster publishes post drafts to X.
package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"
)

// MaxRunes is the post length limit.
const MaxRunes = 140

// Timeout bounds one create-post request.
const Timeout = 30 * time.Second

// DefaultEndpoint is the X API v2 create-post endpoint.
const DefaultEndpoint = "https://api.twitter.com/2/tweets"

// ErrRejected means the X API answered with a non-2xx status.
var ErrRejected = errors.New("post rejected by X API")

// Poster publishes a text and returns the id of the created post. An empty
// id with a nil error means posting is disabled.
type Poster interface {
	Post(ctx context.Context, text string) (string, error)
}

// Truncate fits text into MaxRunes. Longer text is cut after the last full
// stop inside the limit, or hard cut at the limit when there is none. A full
// stop is '。', or '.' followed by whitespace, so "2.5" is never split.
func Truncate(text string) string {
	r := []rune(text)
	if len(r) <= MaxRunes {
		return text
	}
	for i := MaxRunes - 1; i >= 0; i-- {
		if fullStop(r, i) {
			return string(r[:i+1])
		}
	}
	return string(r[:MaxRunes])
}

func fullStop(r []rune, i int) bool {
	switch r[i] {
	case '。':
		return true
	case '.':
		return i+1 == len(r) || unicode.IsSpace(r[i+1])
	}
	return false
}

// Credentials are OAuth 1.0a user-context credentials.
type Credentials struct {
	APIKey            string
	APIKeySecret      string
	AccessToken       string
	AccessTokenSecret string
}

// XPoster posts through the X API v2.
type XPoster struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// Option configures an XPoster.
type Option func(*XPoster)

// WithEndpoint overrides the create-post URL.
func WithEndpoint(url string) Option {
	return func(p *XPoster) { p.endpoint = url }
}

// NewXPoster creates a poster signing requests with creds.
func NewXPoster(ctx context.Context, creds Credentials, logger *zap.Logger, opts ...Option) *XPoster {
	cfg := oauth1.NewConfig(creds.APIKey, creds.APIKeySecret)
	// The signing client keeps only the transport of a context client, so
	// the timeout is set on the returned client.
	client := cfg.Client(ctx, oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret))
	client.Timeout = Timeout
	p := &XPoster{
		endpoint: DefaultEndpoint,
		client:   client,
		logger:   logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type createRequest struct {
	Text string `json:"text"`
}

type createResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (p *XPoster) Post(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(createRequest{Text: text})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("x request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode x response: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("%w: response has no post id", ErrRejected)
	}
	p.logger.Info("posted to X", zap.String("post_id", out.Data.ID))
	return out.Data.ID, nil
}

// Disabled is the poster used when no X credentials are configured.
type Disabled struct {
	Logger *zap.Logger
}

func (d Disabled) Post(_ context.Context, text string) (string, error) {
	d.Logger.Info("X credentials not configured, skipping post", zap.String("text", text))
	return "", nil
}
