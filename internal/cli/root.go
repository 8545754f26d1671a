// Package cli implements the growthbot CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/growthbot/internal/cluster"
	"github.com/rcliao/growthbot/internal/concept"
	"github.com/rcliao/growthbot/internal/config"
	"github.com/rcliao/growthbot/internal/cycle"
	"github.com/rcliao/growthbot/internal/llm"
	"github.com/rcliao/growthbot/internal/logging"
	"github.com/rcliao/growthbot/internal/poster"
	"github.com/rcliao/growthbot/internal/research"
	"github.com/rcliao/growthbot/internal/store"
)

var (
	configPath string
	verbose    bool
)

// RootCmd is the top-level command. Without a subcommand it behaves like run.
var RootCmd = &cobra.Command{
	Use:   "growthbot",
	Short: "Research, post and conceptualize from a knowledge corpus",
	Long: "growthbot picks a theme from its knowledge clusters, researches it with Gemini, posts a short summary to X\n" +
		"and records what it learned. Every few posts it synthesizes the recent knowledge into a concept and re-clusters.",
	Run: runRun,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $GROWTHBOT_CONFIG)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	addRunFlags(RootCmd)
}

// env is everything a command needs, built from the configuration.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	recent  store.KnowledgeLog
	all     store.KnowledgeLog
	history store.PostHistory
	close   func() error
}

// setup loads the configuration and opens the stores. local skips the API
// credential checks for commands that only read files.
func setup(local bool) *env {
	load := config.Load
	if local {
		load = config.LoadSettings
	}
	cfg, err := load(configPath)
	if err != nil {
		exitErr("config", err)
	}

	logger, err := logging.New(verbose)
	if err != nil {
		exitErr("logger", err)
	}

	e := &env{cfg: cfg, logger: logger}
	if err := e.openStores(); err != nil {
		exitErr("open store", err)
	}
	return e
}

func (e *env) openStores() error {
	switch e.cfg.Store.Backend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(e.cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		e.recent, e.all, e.history = s.Log(store.RecentLog), s.Log(store.AllLog), s.History()
		e.close = s.Close
	default:
		p := e.cfg.Paths
		e.recent = store.NewJSONLog(p.RecentKnowledgeFile)
		e.all = store.NewJSONLog(p.AllKnowledgeFile)
		e.history = store.NewJSONHistory(p.PostHistoryFile)
		e.close = func() error { return nil }
	}
	return nil
}

func (e *env) Close() {
	_ = e.close()
	_ = e.logger.Sync()
}

// controller wires the cycle controller with live Gemini and X clients.
func (e *env) controller(ctx context.Context, logger *zap.Logger) (*cycle.Controller, error) {
	cfg := e.cfg

	gen, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model, logger)
	if err != nil {
		return nil, err
	}
	policy := llm.Policy{MaxAttempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay}
	retrying := llm.WithRetry(gen, policy)

	var p poster.Poster = poster.Disabled{Logger: logger}
	if cfg.X.Enabled() {
		p = poster.NewXPoster(ctx, poster.Credentials{
			APIKey:            cfg.X.APIKey,
			APIKeySecret:      cfg.X.APIKeySecret,
			AccessToken:       cfg.X.AccessToken,
			AccessTokenSecret: cfg.X.AccessTokenSecret,
		}, logger)
	}

	return cycle.New(cycle.Deps{
		Recent:      e.recent,
		All:         e.all,
		History:     e.history,
		Picker:      cluster.NewSelector(nil),
		Researcher:  research.New(gen, policy, logger),
		Synthesizer: concept.New(retrying, logger),
		Reclusterer: cluster.NewReclusterer(retrying, logger),
		Poster:      p,
		Paths: cycle.Paths{
			CorpusDir:      cfg.Paths.KnowledgeBaseDir,
			Clusters:       cfg.Paths.ClustersFile,
			Concept:        cfg.Paths.ConceptFile,
			ConceptSummary: cfg.Paths.ConceptSummaryFile,
		},
		Threshold: cfg.Threshold,
		PaceDelay: cfg.PaceDelay,
		Logger:    logger,
	}), nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
