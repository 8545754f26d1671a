package cycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rcliao/growthbot/internal/cluster"
	"github.com/rcliao/growthbot/internal/concept"
	"github.com/rcliao/growthbot/internal/llm"
	"github.com/rcliao/growthbot/internal/model"
	"github.com/rcliao/growthbot/internal/poster"
	"github.com/rcliao/growthbot/internal/research"
	"github.com/rcliao/growthbot/internal/store"
)

type fakeResearcher struct {
	calls int
	err   error
}

func (f *fakeResearcher) Research(_ context.Context, topic model.ClusterTopic) (*model.ResearchResult, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return &model.ResearchResult{
		Overview: "overview of " + topic.Theme,
		Tweet:    fmt.Sprintf("Post %d about %s.", f.calls, topic.Theme),
	}, "raw", nil
}

type fakeSynth struct {
	calls   int
	entries []model.KnowledgeEntry
	err     error
}

func (f *fakeSynth) Synthesize(_ context.Context, entries []model.KnowledgeEntry) (*concept.Result, error) {
	f.calls++
	f.entries = entries
	if f.err != nil {
		return nil, f.err
	}
	return &concept.Result{
		Report:  "# Research report: Ambient AI",
		Concept: model.Concept{Name: "Ambient AI", Summary: "s", Components: []string{"sensors"}},
	}, nil
}

type fakeReclusterer struct {
	calls int
	input string
	err   error
}

func (f *fakeReclusterer) Recluster(_ context.Context, text string) (model.ClusterSet, error) {
	f.calls++
	f.input = text
	if f.err != nil {
		return model.ClusterSet{}, f.err
	}
	return model.ClusterSet{Clusters: []model.ClusterTopic{
		{ID: 1, Theme: fmt.Sprintf("regenerated %d", f.calls), Keywords: []string{"k"}},
	}}, nil
}

type fakePoster struct {
	texts []string
	id    string
	err   error
}

func (f *fakePoster) Post(_ context.Context, text string) (string, error) {
	f.texts = append(f.texts, text)
	return f.id, f.err
}

type harness struct {
	ctrl    *Controller
	recent  *store.MemoryLog
	all     *store.MemoryLog
	history *store.MemoryHistory
	res     *fakeResearcher
	synth   *fakeSynth
	rc      *fakeReclusterer
	post    *fakePoster
	paths   Paths
	sleeps  int
}

func entries(n int) []model.KnowledgeEntry {
	out := make([]model.KnowledgeEntry, n)
	for i := range out {
		out[i] = model.KnowledgeEntry{ID: fmt.Sprintf("e%02d", i), Theme: "seed", GeneratedText: "seed"}
	}
	return out
}

// newHarness builds a controller over in-memory logs with recentN entries in
// the recent log and a cluster file on disk.
func newHarness(t *testing.T, threshold, recentN int) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		recent:  store.NewMemoryLog(entries(recentN)...),
		all:     store.NewMemoryLog(entries(recentN)...),
		history: &store.MemoryHistory{},
		res:     &fakeResearcher{},
		synth:   &fakeSynth{},
		rc:      &fakeReclusterer{},
		post:    &fakePoster{},
		paths: Paths{
			CorpusDir:      filepath.Join(dir, "knowledge_base"),
			Clusters:       filepath.Join(dir, "clusters.json"),
			Concept:        filepath.Join(dir, "knowledge", "concept.json"),
			ConceptSummary: filepath.Join(dir, "knowledge", "concept_summary.md"),
		},
	}
	require.NoError(t, os.MkdirAll(h.paths.CorpusDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.paths.CorpusDir, "notes.md"), []byte("# Notes\nBase corpus text."), 0o644))
	require.NoError(t, store.SaveClusters(h.paths.Clusters, model.ClusterSet{Clusters: []model.ClusterTopic{
		{ID: 1, Theme: "Edge AI", Keywords: []string{"npu"}},
		{ID: 2, Theme: "Open models", Keywords: []string{"weights"}},
	}}))

	h.ctrl = New(Deps{
		Recent:      h.recent,
		All:         h.all,
		History:     h.history,
		Picker:      cluster.NewSelector(rand.New(rand.NewPCG(1, 1))),
		Researcher:  h.res,
		Synthesizer: h.synth,
		Reclusterer: h.rc,
		Poster:      h.post,
		Paths:       h.paths,
		Threshold:   threshold,
		PaceDelay:   10 * time.Second,
		Sleep: func(context.Context, time.Duration) error {
			h.sleeps++
			return nil
		},
		Logger: zaptest.NewLogger(t),
	})
	return h
}

func length(t *testing.T, l store.KnowledgeLog) int {
	t.Helper()
	n, err := l.Len(context.Background())
	require.NoError(t, err)
	return n
}

func TestDecide(t *testing.T) {
	tests := []struct {
		recent int
		want   State
	}{
		{0, Normal},
		{9, Normal},
		{10, Conceptualize},
		{12, Conceptualize},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.recent), func(t *testing.T) {
			h := newHarness(t, 10, tt.recent)
			got, err := h.ctrl.Decide(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStepBelowThresholdAddsExactlyOneEntry(t *testing.T) {
	const threshold = 5
	for n := 0; n < threshold; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			h := newHarness(t, threshold, n)

			state, err := h.ctrl.Step(context.Background())
			require.NoError(t, err)

			assert.Equal(t, n+1, length(t, h.recent))
			assert.Equal(t, n+1, length(t, h.all))
			assert.Equal(t, 1, h.res.calls)
			assert.Zero(t, h.synth.calls)
			if n+1 < threshold {
				assert.Equal(t, Normal, state)
			} else {
				assert.Equal(t, Conceptualize, state)
			}
		})
	}
}

func TestNormalCycleRecordsEntryAndPost(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.post.id = "1790000000000000002"

	_, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)

	recent, err := h.recent.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recent, 1)
	e := recent[0]
	assert.NotEmpty(t, e.ID)
	assert.Contains(t, []string{"Edge AI", "Open models"}, e.Theme)
	assert.Equal(t, e.Research.Tweet, e.GeneratedText)
	assert.Equal(t, "raw", e.RawResponse)

	all, err := h.all.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, e, all[0], "both logs hold the same entry")

	posts, err := h.history.All(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, model.StatusPosted, posts[0].Status)
	require.NotNil(t, posts[0].PostID)
	assert.Equal(t, "1790000000000000002", *posts[0].PostID)
	assert.Equal(t, e.Theme, posts[0].Theme)
	assert.Equal(t, []string{e.GeneratedText}, h.post.texts)
}

func TestNormalCycleTruncatesPost(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.ctrl.d.Researcher = researcherFunc(func(context.Context, model.ClusterTopic) (*model.ResearchResult, string, error) {
		long := ""
		for len([]rune(long)) < 200 {
			long += "長い投稿の文。"
		}
		return &model.ResearchResult{Tweet: long}, "", nil
	})

	_, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, h.post.texts, 1)
	assert.LessOrEqual(t, len([]rune(h.post.texts[0])), poster.MaxRunes)

	posts, _ := h.history.All(context.Background())
	assert.Equal(t, h.post.texts[0], posts[0].Text)
	assert.Equal(t, model.StatusSkipped, posts[0].Status)
}

type researcherFunc func(context.Context, model.ClusterTopic) (*model.ResearchResult, string, error)

func (f researcherFunc) Research(ctx context.Context, t model.ClusterTopic) (*model.ResearchResult, string, error) {
	return f(ctx, t)
}

func TestRunFromNineteenReachesThresholdAndConceptualizes(t *testing.T) {
	h := newHarness(t, 20, 19)
	allBefore := length(t, h.all)

	state, err := h.ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, state)

	assert.Equal(t, 1, h.res.calls, "one normal cycle appends entry 20")
	assert.Equal(t, 1, h.synth.calls)
	assert.Len(t, h.synth.entries, 20)
	assert.Equal(t, 1, h.rc.calls)
	assert.Equal(t, 1, h.sleeps)

	assert.Equal(t, 0, length(t, h.recent))
	assert.Equal(t, allBefore+1, length(t, h.all), "all log is never reset")

	set, err := store.LoadClusters(h.paths.Clusters)
	require.NoError(t, err)
	assert.Equal(t, "regenerated 1", set.Clusters[0].Theme)
}

func TestConceptualizeCycle(t *testing.T) {
	h := newHarness(t, 3, 3)

	state, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, state)
	assert.Zero(t, h.res.calls)

	assert.Equal(t, 0, length(t, h.recent))
	assert.Equal(t, 3, length(t, h.all))

	c, ok, err := store.LoadConcept(h.paths.Concept)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ambient AI", c.Name)

	report, err := os.ReadFile(h.paths.ConceptSummary)
	require.NoError(t, err)
	assert.Contains(t, string(report), "Research report: Ambient AI")

	assert.Contains(t, h.rc.input, "Base corpus text.")
	assert.Contains(t, h.rc.input, "## Ambient AI")

	// The next cycle starts over with a normal cycle.
	next, err := h.ctrl.Decide(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Normal, next)
}

func TestMissingClusterFileConceptualizesInstead(t *testing.T) {
	h := newHarness(t, 10, 0)
	require.NoError(t, os.Remove(h.paths.Clusters))

	state, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, state)

	assert.Zero(t, h.res.calls)
	assert.Zero(t, h.synth.calls, "nothing to synthesize from an empty recent log")
	assert.Equal(t, 1, h.rc.calls)
	assert.Contains(t, h.rc.input, "Base corpus text.")

	_, err = store.LoadClusters(h.paths.Clusters)
	assert.NoError(t, err)
}

func TestEmptyRecentLogReusesLastConcept(t *testing.T) {
	h := newHarness(t, 10, 0)
	require.NoError(t, os.Remove(h.paths.Clusters))
	require.NoError(t, store.SaveConcept(h.paths.Concept, model.Concept{Name: "Earlier concept"}))

	_, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	assert.Contains(t, h.rc.input, "## Earlier concept")
}

func TestResearchWithoutJSONRecordsNothing(t *testing.T) {
	h := newHarness(t, 10, 0)
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "no json here", nil
	})
	h.ctrl.d.Researcher = research.New(gen, llm.Policy{MaxAttempts: 3}, zaptest.NewLogger(t))

	_, err := h.ctrl.Step(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrNoJSON))

	assert.Equal(t, 0, length(t, h.recent))
	assert.Equal(t, 0, length(t, h.all))
	assert.Empty(t, h.post.texts)
	posts, _ := h.history.All(context.Background())
	assert.Empty(t, posts)
}

func TestResearchConnectivityFailurePropagates(t *testing.T) {
	h := newHarness(t, 10, 2)
	h.res.err = fmt.Errorf("research: %w", llm.ErrConnectivity)

	_, err := h.ctrl.Run(context.Background())
	assert.True(t, errors.Is(err, llm.ErrConnectivity))
	assert.Equal(t, 2, length(t, h.recent))
	assert.Zero(t, h.sleeps)
}

func TestConceptFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, 3, 3)
	h.synth.err = concept.ErrInvalidConcept
	before, err := os.ReadFile(h.paths.Clusters)
	require.NoError(t, err)

	state, err := h.ctrl.Step(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, concept.ErrInvalidConcept))
	assert.Equal(t, Conceptualize, state)

	after, err := os.ReadFile(h.paths.Clusters)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 3, length(t, h.recent))
	assert.Zero(t, h.rc.calls)

	_, ok, err := store.LoadConcept(h.paths.Concept)
	require.NoError(t, err)
	assert.False(t, ok)

	// A later invocation retries from the same state.
	h.synth.err = nil
	state, err = h.ctrl.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, state)
	assert.Equal(t, 0, length(t, h.recent))
}

func TestReclusterFailureKeepsRecentLog(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.rc.err = cluster.ErrNoClusters

	_, err := h.ctrl.Step(context.Background())
	assert.True(t, errors.Is(err, cluster.ErrNoClusters))
	assert.Equal(t, 2, length(t, h.recent))
}

// failingLog rejects every append.
type failingLog struct {
	store.KnowledgeLog
	err error
}

func (l failingLog) Append(context.Context, model.KnowledgeEntry) (model.KnowledgeEntry, error) {
	return model.KnowledgeEntry{}, l.err
}

func TestAllLogFailureLeavesRecentLogUnchanged(t *testing.T) {
	h := newHarness(t, 10, 2)
	diskFull := errors.New("disk full")
	h.ctrl.d.All = failingLog{KnowledgeLog: h.all, err: diskFull}

	_, err := h.ctrl.Step(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, diskFull))

	assert.Equal(t, 2, length(t, h.recent), "recent never holds an entry missing from all")
	assert.Equal(t, 2, length(t, h.all))
	assert.Empty(t, h.post.texts)
}

func TestPostFailureIsRecordedAndReturned(t *testing.T) {
	h := newHarness(t, 10, 0)
	h.post.err = fmt.Errorf("%w: status 403", poster.ErrRejected)

	_, err := h.ctrl.Step(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, poster.ErrRejected))

	assert.Equal(t, 1, length(t, h.recent), "knowledge is kept even when posting fails")
	posts, err := h.history.All(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, model.StatusFailed, posts[0].Status)
	assert.Nil(t, posts[0].PostID)
}

func TestForceReclusterLeavesLogsAlone(t *testing.T) {
	h := newHarness(t, 10, 4)
	require.NoError(t, store.SaveConcept(h.paths.Concept, model.Concept{Name: "Persisted"}))

	require.NoError(t, h.ctrl.ForceRecluster(context.Background()))

	assert.Equal(t, 1, h.rc.calls)
	assert.Contains(t, h.rc.input, "## Persisted")
	assert.Equal(t, 4, length(t, h.recent))
	assert.Equal(t, 4, length(t, h.all))
	set, err := store.LoadClusters(h.paths.Clusters)
	require.NoError(t, err)
	assert.Equal(t, "regenerated 1", set.Clusters[0].Theme)
}

func TestRunStopsWhenSleepIsCancelled(t *testing.T) {
	h := newHarness(t, 10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	h.ctrl.d.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	state, err := h.ctrl.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Normal, state)
	assert.Equal(t, 1, length(t, h.recent))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "NORMAL", Normal.String())
	assert.Equal(t, "CONCEPTUALIZE", Conceptualize.String())
	assert.Equal(t, "DONE", Done.String())
}
