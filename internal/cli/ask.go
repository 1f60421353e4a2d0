package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Generate an answer to a question and fact-check it",
	Long: `Ask generates an answer with the configured language model, splits it
into claims, checks every claim against the reference documents and prints
the trust score.

Without a configured provider the offline heuristics answer from the
reference documents themselves.

Example:
  credence ask "What is the revenue growth for 2024?"
  credence ask "When does version 2.0 ship?" --doc roadmap.md --md report.md
  CREDENCE_LLM_PROVIDER=openai credence ask "..." --json -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	addRunFlags(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	return executeRun(func(ctx context.Context, p *pipeline.Pipeline) (*model.Run, error) {
		return p.Run(ctx, question)
	})
}
