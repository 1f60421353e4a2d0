package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
)

var (
	answerText string
	answerFile string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [question]",
	Short: "Fact-check an existing answer",
	Long: `Check skips generation and verifies an answer you supply, either inline
with --answer or from a file with --answer-file ('-' reads stdin).

Example:
  credence check --answer "Revenue grew 15% in 2024."
  credence check "How did revenue develop?" --answer-file answer.txt --docs-dir ./docs
  pbpaste | credence check --answer-file - --json report.json`,
	Args: cobra.ArbitraryArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addRunFlags(checkCmd)

	checkCmd.Flags().StringVar(&answerText, "answer", "", "answer text to verify")
	checkCmd.Flags().StringVar(&answerFile, "answer-file", "", "file containing the answer ('-' for stdin)")
	checkCmd.MarkFlagsMutuallyExclusive("answer", "answer-file")
	checkCmd.MarkFlagsOneRequired("answer", "answer-file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	answer, err := readAnswer(cmd.InOrStdin())
	if err != nil {
		return err
	}
	question := strings.Join(args, " ")

	return executeRun(func(ctx context.Context, p *pipeline.Pipeline) (*model.Run, error) {
		return p.Check(ctx, question, answer)
	})
}

func readAnswer(stdin io.Reader) (string, error) {
	if answerFile == "" {
		return answerText, nil
	}

	var data []byte
	var err error
	if answerFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(answerFile)
	}
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return string(data), nil
}
