package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/growthbot/internal/cycle"
	"github.com/rcliao/growthbot/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show knowledge, cluster and posting status",
		Args:  cobra.NoArgs,
		Run:   runStatus,
	}

	RootCmd.AddCommand(cmd)
}

type status struct {
	Backend   string `json:"backend"`
	Threshold int    `json:"threshold"`
	NextCycle string `json:"next_cycle"`
	Clusters  int    `json:"clusters"`
	Concept   string `json:"concept,omitempty"`
	*store.Stats
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	e := setup(true)
	defer e.Close()

	stats, err := store.CollectStats(ctx, e.recent, e.all, e.history)
	if err != nil {
		exitErr("stats", err)
	}

	next, err := cycle.New(cycle.Deps{Recent: e.recent, Threshold: e.cfg.Threshold}).Decide(ctx)
	if err != nil {
		exitErr("stats", err)
	}

	st := status{
		Backend:   e.cfg.Store.Backend,
		Threshold: e.cfg.Threshold,
		NextCycle: next.String(),
		Stats:     stats,
	}
	if ok, err := store.Exists(e.cfg.Paths.ClustersFile); err != nil {
		exitErr("stats", err)
	} else if ok {
		set, err := store.LoadClusters(e.cfg.Paths.ClustersFile)
		if err != nil {
			exitErr("load clusters", err)
		}
		st.Clusters = len(set.Clusters)
	}
	if c, ok, err := store.LoadConcept(e.cfg.Paths.ConceptFile); err != nil {
		exitErr("load concept", err)
	} else if ok {
		st.Concept = c.Name
	}

	b, _ := json.MarshalIndent(st, "", "  ")
	fmt.Println(string(b))
}
