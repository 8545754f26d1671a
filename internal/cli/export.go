package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/growthbot/internal/model"
	"github.com/rcliao/growthbot/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a knowledge log as JSON",
		Long:  "Export the recent or all knowledge log in the {\"knowledge_entries\": [...]} file format, whatever the store backend.",
		Args:  cobra.NoArgs,
		Run:   runExport,
	}

	cmd.Flags().String("log", store.AllLog, "Log to export: recent or all")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("log")

	e := setup(true)
	defer e.Close()

	var log store.KnowledgeLog
	switch name {
	case store.RecentLog:
		log = e.recent
	case store.AllLog:
		log = e.all
	default:
		exitErr("export", fmt.Errorf("unknown log %q (valid: recent, all)", name))
	}

	entries, err := log.All(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}
	if entries == nil {
		entries = []model.KnowledgeEntry{}
	}

	b, _ := json.MarshalIndent(model.KnowledgeFile{Entries: entries}, "", "  ")
	fmt.Println(string(b))
}
