package cluster

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rcliao/growthbot/internal/llm"
	"github.com/rcliao/growthbot/internal/model"
)

func TestPickEmptySet(t *testing.T) {
	_, err := NewSelector(nil).Pick(model.ClusterSet{})
	assert.True(t, errors.Is(err, ErrNoClusters))
}

func TestPickCoversEveryCluster(t *testing.T) {
	set := model.ClusterSet{Clusters: []model.ClusterTopic{
		{ID: 1, Theme: "a"}, {ID: 2, Theme: "b"}, {ID: 3, Theme: "c"},
	}}
	s := NewSelector(rand.New(rand.NewPCG(1, 2)))

	seen := map[int]int{}
	for i := 0; i < 300; i++ {
		c, err := s.Pick(set)
		require.NoError(t, err)
		seen[c.ID]++
	}
	assert.Len(t, seen, 3)
	for id, n := range seen {
		assert.Greater(t, n, 50, "cluster %d picked too rarely", id)
	}
}

func TestPickIsDeterministicWithSeed(t *testing.T) {
	set := model.ClusterSet{Clusters: []model.ClusterTopic{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}}
	a := NewSelector(rand.New(rand.NewPCG(7, 7)))
	b := NewSelector(rand.New(rand.NewPCG(7, 7)))
	for i := 0; i < 10; i++ {
		x, _ := a.Pick(set)
		y, _ := b.Pick(set)
		assert.Equal(t, x, y)
	}
}

func staticGen(text string, err error) (llm.Generator, *llm.Request) {
	var last llm.Request
	return llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		last = req
		return text, err
	}), &last
}

func TestRecluster(t *testing.T) {
	gen, last := staticGen("Here you go:\n```json\n"+`{"clusters": [
		{"id": 1, "theme": "Edge AI", "summary": "s1", "keywords": ["npu"]},
		{"id": 2, "theme": "Open models", "summary": "s2", "keywords": ["weights"]}
	]}`+"\n```", nil)
	r := NewReclusterer(gen, zaptest.NewLogger(t))

	set, err := r.Recluster(context.Background(), "corpus text about AI")
	require.NoError(t, err)
	require.Len(t, set.Clusters, 2)
	assert.Equal(t, "Edge AI", set.Clusters[0].Theme)
	assert.Equal(t, []string{"weights"}, set.Clusters[1].Keywords)
	assert.Contains(t, last.Prompt, "corpus text about AI")
	assert.Contains(t, last.Prompt, "5 clusters")
}

func TestReclusterRenumbersMissingIDs(t *testing.T) {
	gen, _ := staticGen(`{"clusters": [{"theme": "a"}, {"theme": "  "}, {"theme": "b"}]}`, nil)
	set, err := NewReclusterer(gen, zaptest.NewLogger(t)).Recluster(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, set.Clusters, 2)
	assert.Equal(t, 1, set.Clusters[0].ID)
	assert.Equal(t, 2, set.Clusters[1].ID)
	assert.Equal(t, "b", set.Clusters[1].Theme)
}

func TestReclusterErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		corpus string
		resp   string
		err    error
		want   error
	}{
		{name: "empty corpus", corpus: " ", want: ErrNoClusters},
		{name: "no json", corpus: "x", resp: "no json here", want: llm.ErrNoJSON},
		{name: "bad json", corpus: "x", resp: "{clusters: nope}", want: llm.ErrInvalidJSON},
		{name: "no clusters", corpus: "x", resp: `{"clusters": []}`, want: ErrNoClusters},
		{name: "service error", corpus: "x", err: boom, want: boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, _ := staticGen(tt.resp, tt.err)
			_, err := NewReclusterer(gen, zaptest.NewLogger(t)).Recluster(context.Background(), tt.corpus)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
