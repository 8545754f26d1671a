// Package cluster derives theme clusters from the knowledge corpus and picks
// the topic for a research cycle.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/growthbot/internal/llm"
	"github.com/rcliao/growthbot/internal/model"
)

// DefaultCount is the number of clusters requested per re-clustering.
const DefaultCount = 5

// ErrNoClusters means there is nothing to pick from, or re-clustering
// produced no usable clusters.
var ErrNoClusters = errors.New("no clusters")

// Selector picks a topic uniformly at random.
type Selector struct {
	rng *rand.Rand
}

// NewSelector creates a selector. A nil rng uses a randomly seeded source.
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{rng: rng}
}

// Pick returns one cluster of set.
func (s *Selector) Pick(set model.ClusterSet) (model.ClusterTopic, error) {
	if len(set.Clusters) == 0 {
		return model.ClusterTopic{}, ErrNoClusters
	}
	return set.Clusters[s.rng.IntN(len(set.Clusters))], nil
}

// Reclusterer asks the generative service to group the corpus into themes.
type Reclusterer struct {
	gen    llm.Generator
	count  int
	logger *zap.Logger
}

// NewReclusterer creates a re-clusterer requesting DefaultCount clusters.
func NewReclusterer(gen llm.Generator, logger *zap.Logger) *Reclusterer {
	return &Reclusterer{gen: gen, count: DefaultCount, logger: logger}
}

// Recluster derives a new cluster set from corpusText.
func (r *Reclusterer) Recluster(ctx context.Context, corpusText string) (model.ClusterSet, error) {
	if strings.TrimSpace(corpusText) == "" {
		return model.ClusterSet{}, fmt.Errorf("recluster: %w: corpus is empty", ErrNoClusters)
	}
	r.logger.Info("reclustering corpus", zap.Int("chars", len(corpusText)), zap.Int("clusters", r.count))

	raw, err := r.gen.Generate(ctx, llm.Request{Prompt: prompt(corpusText, r.count)})
	if err != nil {
		return model.ClusterSet{}, fmt.Errorf("recluster: %w", err)
	}

	var set model.ClusterSet
	if err := llm.DecodeJSON(raw, &set); err != nil {
		return model.ClusterSet{}, fmt.Errorf("recluster: %w", err)
	}
	set = normalize(set)
	if len(set.Clusters) == 0 {
		return model.ClusterSet{}, fmt.Errorf("recluster: %w", ErrNoClusters)
	}
	for _, c := range set.Clusters {
		r.logger.Debug("cluster", zap.Int("id", c.ID), zap.String("theme", c.Theme), zap.Strings("keywords", c.Keywords))
	}
	return set, nil
}

// normalize drops clusters without a theme and numbers the rest 1..n when
// the response left ids out or repeated them.
func normalize(set model.ClusterSet) model.ClusterSet {
	var out []model.ClusterTopic
	seen := map[int]bool{}
	renumber := false
	for _, c := range set.Clusters {
		c.Theme = strings.TrimSpace(c.Theme)
		if c.Theme == "" {
			continue
		}
		if c.ID <= 0 || seen[c.ID] {
			renumber = true
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	if renumber {
		for i := range out {
			out[i].ID = i + 1
		}
	}
	return model.ClusterSet{Clusters: out}
}

func prompt(corpusText string, n int) string {
	return fmt.Sprintf(`You are an analyst who organizes a knowledge base into themes.

Read the documents below and group their content into %d clusters of closely related ideas.
For each cluster give a short theme name, a one or two sentence summary and three to six keywords.
If the documents include a "High-level concepts" section, let those concepts shape the themes.

Answer with exactly one JSON block in this format:
`+"```json"+`
{
  "clusters": [
    {"id": 1, "theme": "(theme name)", "summary": "(summary)", "keywords": ["(keyword)"]}
  ]
}
`+"```"+`

---
Documents:
%s`, n, corpusText)
}
