// Package cycle runs the bot's two-tier memory cycle.
//
// The length of the recent knowledge log decides what a cycle does. Below
// the threshold a normal cycle researches one topic, records it in both the
// recent and the all log and posts it. At or above the threshold a
// conceptualization cycle synthesizes a concept from the recent log,
// re-clusters the corpus with it and resets the recent log. The all log is
// never reset.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/growthbot/internal/cluster"
	"github.com/rcliao/growthbot/internal/concept"
	"github.com/rcliao/growthbot/internal/corpus"
	"github.com/rcliao/growthbot/internal/llm"
	"github.com/rcliao/growthbot/internal/model"
	"github.com/rcliao/growthbot/internal/poster"
	"github.com/rcliao/growthbot/internal/store"
)

// State is the controller state after a cycle.
type State int

const (
	Normal State = iota
	Conceptualize
	Done
)

func (s State) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Conceptualize:
		return "CONCEPTUALIZE"
	case Done:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Picker chooses the topic for a normal cycle.
type Picker interface {
	Pick(set model.ClusterSet) (model.ClusterTopic, error)
}

// Researcher investigates a topic.
type Researcher interface {
	Research(ctx context.Context, topic model.ClusterTopic) (*model.ResearchResult, string, error)
}

// Synthesizer condenses knowledge entries into a concept.
type Synthesizer interface {
	Synthesize(ctx context.Context, entries []model.KnowledgeEntry) (*concept.Result, error)
}

// Reclusterer derives a cluster set from corpus text.
type Reclusterer interface {
	Recluster(ctx context.Context, corpusText string) (model.ClusterSet, error)
}

// Paths are the files the controller reads and replaces.
type Paths struct {
	CorpusDir      string
	Clusters       string
	Concept        string
	ConceptSummary string
}

// Deps wires a Controller.
type Deps struct {
	Recent  store.KnowledgeLog
	All     store.KnowledgeLog
	History store.PostHistory

	Picker      Picker
	Researcher  Researcher
	Synthesizer Synthesizer
	Reclusterer Reclusterer
	Poster      poster.Poster

	Paths     Paths
	Threshold int

	// PaceDelay separates successive cycles in Run.
	PaceDelay time.Duration

	// CorpusBudget bounds the re-clustering input in runes. Zero means
	// corpus.DefaultBudget.
	CorpusBudget int

	Sleep  func(ctx context.Context, d time.Duration) error
	Now    func() time.Time
	Logger *zap.Logger
}

// Controller decides and runs cycles. It is not safe for concurrent use and
// assumes it is the only writer of its logs and files.
type Controller struct {
	d Deps
}

// New creates a controller. Nil Sleep, Now and Logger get working defaults.
func New(d Deps) *Controller {
	if d.Sleep == nil {
		d.Sleep = llm.Sleep
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Threshold < 1 {
		d.Threshold = 1
	}
	return &Controller{d: d}
}

// Decide reports which cycle the current recent-log length calls for.
func (c *Controller) Decide(ctx context.Context) (State, error) {
	n, err := c.d.Recent.Len(ctx)
	if err != nil {
		return Normal, fmt.Errorf("read recent log: %w", err)
	}
	if n >= c.d.Threshold {
		return Conceptualize, nil
	}
	return Normal, nil
}

// Step runs exactly one cycle and returns the state the next call to Step
// would act on, or Done after a conceptualization.
func (c *Controller) Step(ctx context.Context) (State, error) {
	state, err := c.Decide(ctx)
	if err != nil {
		return state, err
	}
	if state == Conceptualize {
		return c.conceptualize(ctx)
	}
	return c.normal(ctx)
}

// Run repeats Step until a conceptualization completes, pausing PaceDelay
// between cycles.
func (c *Controller) Run(ctx context.Context) (State, error) {
	for {
		state, err := c.Step(ctx)
		if err != nil || state == Done {
			return state, err
		}
		c.d.Logger.Info("next cycle", zap.Stringer("state", state), zap.Duration("delay", c.d.PaceDelay))
		if err := c.d.Sleep(ctx, c.d.PaceDelay); err != nil {
			return state, err
		}
	}
}

// ForceRecluster re-derives the cluster set from the corpus and the last
// persisted concept. Neither knowledge log is touched.
func (c *Controller) ForceRecluster(ctx context.Context) error {
	last, err := c.lastConcept()
	if err != nil {
		return err
	}
	return c.recluster(ctx, last)
}

func (c *Controller) normal(ctx context.Context) (State, error) {
	log := c.d.Logger

	set, err := store.LoadClusters(c.d.Paths.Clusters)
	if errors.Is(err, store.ErrClustersNotFound) {
		log.Warn("cluster file missing, running conceptualization first", zap.String("path", c.d.Paths.Clusters))
		return c.conceptualize(ctx)
	}
	if err != nil {
		return Normal, fmt.Errorf("load clusters: %w", err)
	}

	topic, err := c.d.Picker.Pick(set)
	if errors.Is(err, cluster.ErrNoClusters) {
		log.Warn("cluster file is empty, running conceptualization first", zap.String("path", c.d.Paths.Clusters))
		return c.conceptualize(ctx)
	}
	if err != nil {
		return Normal, err
	}
	log.Info("normal cycle", zap.Int("topic_id", topic.ID), zap.String("theme", topic.Theme))

	result, raw, err := c.d.Researcher.Research(ctx, topic)
	if err != nil {
		return Normal, err
	}

	// The all log is written first so it always holds every recent entry.
	entry, err := c.d.All.Append(ctx, model.KnowledgeEntry{
		TopicID:       topic.ID,
		Theme:         topic.Theme,
		Keywords:      topic.Keywords,
		GeneratedText: result.Tweet,
		Research:      *result,
		RawResponse:   raw,
		CreatedAt:     c.d.Now().UTC(),
	})
	if err != nil {
		return Normal, fmt.Errorf("append all log: %w", err)
	}
	if _, err := c.d.Recent.Append(ctx, entry); err != nil {
		return Normal, fmt.Errorf("append recent log: %w", err)
	}

	if err := c.post(ctx, topic.Theme, result.Tweet); err != nil {
		return Normal, err
	}

	return c.Decide(ctx)
}

func (c *Controller) post(ctx context.Context, theme, draft string) error {
	text := poster.Truncate(draft)
	id, postErr := c.d.Poster.Post(ctx, text)

	h := model.PostHistoryEntry{Timestamp: c.d.Now().UTC(), Theme: theme, Text: text}
	switch {
	case postErr != nil:
		h.Status = model.StatusFailed
	case id == "":
		h.Status = model.StatusSkipped
	default:
		h.Status = model.StatusPosted
		h.PostID = &id
	}
	if _, err := c.d.History.Append(ctx, h); err != nil {
		return errors.Join(postErr, fmt.Errorf("record post history: %w", err))
	}
	if postErr != nil {
		return fmt.Errorf("post: %w", postErr)
	}
	c.d.Logger.Info("post recorded", zap.String("status", h.Status), zap.Int("chars", len([]rune(text))))
	return nil
}

func (c *Controller) conceptualize(ctx context.Context) (State, error) {
	log := c.d.Logger

	entries, err := c.d.Recent.All(ctx)
	if err != nil {
		return Conceptualize, fmt.Errorf("read recent log: %w", err)
	}
	log.Info("conceptualization cycle", zap.Int("entries", len(entries)))

	var current *model.Concept
	if len(entries) == 0 {
		log.Info("recent log is empty, skipping concept synthesis")
		if current, err = c.lastConcept(); err != nil {
			return Conceptualize, err
		}
	} else {
		res, err := c.d.Synthesizer.Synthesize(ctx, entries)
		if err != nil {
			return Conceptualize, fmt.Errorf("synthesize concept: %w", err)
		}
		if err := store.SaveText(c.d.Paths.ConceptSummary, res.Report+"\n"); err != nil {
			return Conceptualize, fmt.Errorf("save concept summary: %w", err)
		}
		if err := store.SaveConcept(c.d.Paths.Concept, res.Concept); err != nil {
			return Conceptualize, fmt.Errorf("save concept: %w", err)
		}
		current = &res.Concept
	}

	if err := c.recluster(ctx, current); err != nil {
		return Conceptualize, err
	}

	if err := c.d.Recent.Reset(ctx); err != nil {
		return Conceptualize, fmt.Errorf("reset recent log: %w", err)
	}
	log.Info("conceptualization complete")
	return Done, nil
}

func (c *Controller) recluster(ctx context.Context, current *model.Concept) error {
	docs, err := corpus.Load(c.d.Paths.CorpusDir)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	text := corpus.Combine(docs, current, c.d.CorpusBudget)

	set, err := c.d.Reclusterer.Recluster(ctx, text)
	if err != nil {
		return err
	}
	if err := store.SaveClusters(c.d.Paths.Clusters, set); err != nil {
		return fmt.Errorf("save clusters: %w", err)
	}
	c.d.Logger.Info("clusters replaced", zap.Int("clusters", len(set.Clusters)), zap.Int("documents", len(docs)))
	return nil
}

func (c *Controller) lastConcept() (*model.Concept, error) {
	last, ok, err := store.LoadConcept(c.d.Paths.Concept)
	if err != nil {
		return nil, fmt.Errorf("load concept: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &last, nil
}
