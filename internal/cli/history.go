package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent posts",
		Args:  cobra.NoArgs,
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results (0 for all)")
	cmd.Flags().StringP("format", "f", "json", "Output format: json or text")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	e := setup(true)
	defer e.Close()

	posts, err := e.history.All(cmd.Context())
	if err != nil {
		exitErr("history", err)
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[len(posts)-limit:]
	}

	if format == "text" {
		for _, p := range posts {
			id := "-"
			if p.PostID != nil {
				id = *p.PostID
			}
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", p.Timestamp.Format(time.RFC3339), p.Status, id, p.Theme, p.Text)
		}
		return
	}

	b, _ := json.MarshalIndent(posts, "", "  ")
	fmt.Println(string(b))
}
