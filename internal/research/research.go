// Package research asks the generative service to investigate one cluster
// topic and returns a structured result with a post draft.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/growthbot/internal/llm"
	"github.com/rcliao/growthbot/internal/model"
)

// ErrMissingTweet means the research JSON parsed but had no post draft.
var ErrMissingTweet = errors.New("research result has no tweet")

// Client researches topics through a Generator with a retry policy.
type Client struct {
	gen    llm.Generator
	policy llm.Policy
	logger *zap.Logger
}

// New creates a research client. The policy governs retries of the
// generative call only; parsing failures are never retried. A zero policy
// means llm.DefaultPolicy.
func New(gen llm.Generator, policy llm.Policy, logger *zap.Logger) *Client {
	if policy.MaxAttempts == 0 {
		policy = llm.DefaultPolicy()
	}
	return &Client{gen: gen, policy: policy, logger: logger}
}

// Research returns the parsed result and the raw response text.
func (c *Client) Research(ctx context.Context, topic model.ClusterTopic) (*model.ResearchResult, string, error) {
	req := llm.Request{Prompt: Prompt(topic), GoogleSearch: true}

	policy := c.policy
	policy.OnRetry = func(attempt int, err error) {
		c.logger.Warn("research call failed, retrying",
			zap.String("theme", topic.Theme),
			zap.Int("attempt", attempt),
			zap.Duration("delay", policy.Delay),
			zap.Error(err))
	}

	var raw string
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		raw, err = c.gen.Generate(ctx, req)
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("research %q: %w", topic.Theme, err)
	}
	c.logger.Debug("research response", zap.String("theme", topic.Theme), zap.String("raw", raw))

	var result model.ResearchResult
	if err := llm.DecodeJSON(raw, &result); err != nil {
		return nil, raw, fmt.Errorf("research %q: %w", topic.Theme, err)
	}
	result.Tweet = strings.TrimSpace(result.Tweet)
	if result.Tweet == "" {
		return nil, raw, fmt.Errorf("research %q: %w", topic.Theme, ErrMissingTweet)
	}
	return &result, raw, nil
}

// Prompt builds the research instruction for a topic.
func Prompt(topic model.ClusterTopic) string {
	var b strings.Builder
	b.WriteString("You are a professional research assistant.\n")
	b.WriteString("Search the web for reliable, current information on the theme and keywords below, ")
	b.WriteString("then combine what you find into an explanation that gives a deep understanding of the topic.\n\n")
	b.WriteString("# Research topic\n")
	fmt.Fprintf(&b, "- Theme: %s\n", topic.Theme)
	fmt.Fprintf(&b, "- Keywords: %s\n", strings.Join(topic.Keywords, ", "))
	if topic.Summary != "" {
		fmt.Fprintf(&b, "- Background: %s\n", topic.Summary)
	}
	b.WriteString("\n# Output format\n")
	b.WriteString("Always answer with exactly one JSON block in this format:\n")
	b.WriteString("```json\n")
	b.WriteString("{\n")
	b.WriteString(`  "overview": "(a short explanation of the theme)",` + "\n")
	b.WriteString(`  "details": "(background and concrete examples)",` + "\n")
	b.WriteString(`  "trends": "(the latest developments and discussion)",` + "\n")
	b.WriteString(`  "tweet": "(a polite summary of about 100 characters for posting on X, no hype, no hashtags, no surveys)"` + "\n")
	b.WriteString("}\n")
	b.WriteString("```\n")
	return b.String()
}
