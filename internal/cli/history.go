package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/store"
)

var (
	historyLimit int
	historyJSON  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from MongoDB",
	Long: `History lists the most recent runs persisted to MongoDB, newest first.
Requires store.mongo_uri (or CREDENCE_STORE_MONGO_URI).

Example:
  credence history
  credence history --limit 20 --json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", store.DefaultHistoryLimit, "number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print runs as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.MongoURI == "" {
		return errors.New("no run store configured: set store.mongo_uri or CREDENCE_STORE_MONGO_URI")
	}

	ctx := context.Background()
	m, err := store.NewMongo(ctx, cfg.Store.MongoURI, cfg.Store.Database, cfg.Store.Collection)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close(ctx) }()

	runs, err := m.History(ctx, historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CREATED\tSTATUS\tSCORE\tRISK\tCLAIMS\tQUESTION")
	for _, r := range runs {
		score, risk, claims := "-", "-", "-"
		if r.Metrics != nil {
			score = fmt.Sprintf("%d", r.Metrics.Score)
			risk = string(r.Metrics.RiskLevel)
			claims = fmt.Sprintf("%d", r.Metrics.TotalClaims)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Status, score, risk, claims, truncate(r.Question, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
