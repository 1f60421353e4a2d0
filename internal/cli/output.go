package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
)

// Flags shared by ask and check
var (
	outJSON    string
	outMD      string
	runTimeout time.Duration
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&docSources, "doc", nil, "reference document: file path or http(s) URL (repeatable)")
	cmd.Flags().StringVar(&docsDir, "docs-dir", "", "directory of reference documents (.txt, .md, .html)")
	cmd.Flags().StringVar(&outJSON, "json", "", "write the JSON report to this path ('-' for stdout)")
	cmd.Flags().StringVar(&outMD, "md", "", "write the Markdown report to this path ('-' for stdout)")
	cmd.Flags().DurationVar(&runTimeout, "timeout", 0, "run timeout (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the capability response cache")
}

// commandConfig loads the configuration and applies command flags
func commandConfig() (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	if runTimeout > 0 {
		cfg.Pipeline.RunTimeout = runTimeout
	}
	return cfg, nil
}

// progressSink prints one line per transition on stderr
func progressSink() pipeline.Sink {
	return pipeline.SinkFunc(func(ctx context.Context, run model.Run) error {
		switch run.Status {
		case model.StatusGenerating:
			fmt.Fprintf(os.Stderr, "⚙️  Generating answer...\n")
		case model.StatusVerifying:
			fmt.Fprintf(os.Stderr, "⚙️  Extracting and verifying claims...\n")
		case model.StatusComplete:
			fmt.Fprintf(os.Stderr, "✓ Verified %d claims (%d dropped)\n", len(run.Results), len(run.Dropped))
		case model.StatusError:
			fmt.Fprintf(os.Stderr, "✗ Run failed: %s\n", run.Error)
		}
		return nil
	})
}

// executeRun builds the app, executes one run and renders it
func executeRun(exec func(ctx context.Context, p *pipeline.Pipeline) (*model.Run, error)) (err error) {
	cfg, err := commandConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, progressSink())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.logger.Warn("Cleanup failed", "error", closeErr)
		}
	}()

	run, runErr := exec(ctx, a.pipeline)
	if run == nil {
		return runErr
	}

	if err := renderRun(cfg, run); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("run %s failed: %w", run.ID, runErr)
	}
	return nil
}

func renderRun(cfg *model.Config, run *model.Run) error {
	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)

	if outJSON != "" {
		if err := renderer.RenderJSON(run, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if outJSON != "-" {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(run, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if outMD != "-" {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}

	// Keep stdout clean when a report is streamed there
	summary := os.Stdout
	if outJSON == "-" || outMD == "-" {
		summary = os.Stderr
	}
	renderer.RenderSummary(summary, run)
	return nil
}
