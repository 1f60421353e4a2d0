package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/score"
)

// Renderer writes run reports as JSON, Markdown or a terminal summary
type Renderer struct {
	includeFooter bool
	scorer        *score.Scorer
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, scorer: score.NewScorer()}
}

// Report is the rendered form of a run: the run itself plus the score
// breakdown behind its metrics
type Report struct {
	model.Run
	Breakdown *score.Breakdown `json:"breakdown,omitempty"`
}

// NewReport builds the report for run. The breakdown is present only for
// completed runs with at least one result.
func (r *Renderer) NewReport(run *model.Run) Report {
	rep := Report{Run: *run}
	if run.Status == model.StatusComplete && len(run.Results) > 0 {
		b := r.scorer.Explain(run.Results)
		rep.Breakdown = &b
	}
	return rep
}

// WriteJSON writes the report as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, run *model.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.NewReport(run)); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// RenderJSON writes the JSON report to path; "-" means stdout
func (r *Renderer) RenderJSON(run *model.Run, path string) error {
	return writeTo(path, func(w io.Writer) error { return r.WriteJSON(w, run) })
}

// RenderMarkdown writes the Markdown report to path; "-" means stdout
func (r *Renderer) RenderMarkdown(run *model.Run, path string) error {
	return writeTo(path, func(w io.Writer) error {
		_, err := io.WriteString(w, r.Markdown(run))
		return err
	})
}

func writeTo(path string, write func(io.Writer) error) (err error) {
	if path == "-" {
		return write(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return write(f)
}

// Markdown renders the run as a Markdown document
func (r *Renderer) Markdown(run *model.Run) string {
	var b strings.Builder

	b.WriteString("# Trust Report\n\n")
	if run.Question != "" {
		fmt.Fprintf(&b, "**Question:** %s\n\n", run.Question)
	}
	fmt.Fprintf(&b, "**Run:** `%s`  \n**Status:** %s  \n**Created:** %s\n\n",
		run.ID, run.Status, run.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	if run.Answer != "" {
		b.WriteString("## Answer\n\n")
		b.WriteString(quote(run.Answer))
		b.WriteString("\n\n")
	}

	if run.Status == model.StatusError {
		fmt.Fprintf(&b, "## Error\n\n%s\n\n", run.Error)
	}

	if m := run.Metrics; m != nil {
		b.WriteString("## Trust Score\n\n")
		fmt.Fprintf(&b, "**%d/100** (%s risk)\n\n", m.Score, m.RiskLevel)

		if m.TotalClaims == 0 {
			b.WriteString("_No claims were verified. A low risk level here means nothing was contradicted, not that anything was confirmed._\n\n")
		} else {
			b.WriteString("| Verified | Partial | Unsupported | Total | Avg. confidence |\n")
			b.WriteString("|---:|---:|---:|---:|---:|\n")
			fmt.Fprintf(&b, "| %d | %d | %d | %d | %d%% |\n\n",
				m.VerifiedCount, m.PartialCount, m.UnsupportedCount, m.TotalClaims, m.AvgConfidence)

			bd := r.scorer.Explain(run.Results)
			fmt.Fprintf(&b, "Base credibility %.2f, confidence modifier %.2f.  \n`%s`\n\n",
				bd.BaseCredibility, bd.ConfidenceModifier, bd.Formula)
		}
	}

	if len(run.Results) > 0 {
		b.WriteString("## Claims\n\n")
		for _, res := range run.Results {
			fmt.Fprintf(&b, "### %d. %s\n\n", res.ClaimID, res.ClaimText)
			fmt.Fprintf(&b, "- **Status:** %s %s\n", statusIcon(res.Status), res.Status)
			fmt.Fprintf(&b, "- **Confidence:** %.0f%%\n", res.Confidence*100)
			if res.Reasoning != "" {
				fmt.Fprintf(&b, "- **Reasoning:** %s\n", res.Reasoning)
			}
			for _, ev := range res.Evidence {
				fmt.Fprintf(&b, "- **Evidence:** \"%s\"\n", ev)
			}
			b.WriteString("\n")
		}
	}

	if len(run.Dropped) > 0 {
		b.WriteString("## Dropped Claims\n\n")
		b.WriteString("These claims were not scored.\n\n")
		for _, d := range run.Dropped {
			fmt.Fprintf(&b, "- %d. %s (`%s`)\n", d.ClaimID, d.ClaimText, d.Reason)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Scores measure support by the supplied documents only. Claims outside the corpus are unsupported, not false._\n")
	}

	return b.String()
}

// RenderSummary prints a short human summary
func (r *Renderer) RenderSummary(w io.Writer, run *model.Run) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	_, _ = fmt.Fprintln(w, "  Credence Trust Report")
	_, _ = fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	_, _ = fmt.Fprintln(w)

	if run.Question != "" {
		_, _ = fmt.Fprintf(w, "  Question:    %s\n", run.Question)
	}
	_, _ = fmt.Fprintf(w, "  Status:      %s\n", run.Status)

	if run.Status == model.StatusError {
		_, _ = fmt.Fprintf(w, "  Error:       %s\n\n", run.Error)
		return
	}

	if m := run.Metrics; m != nil {
		_, _ = fmt.Fprintf(w, "  Trust score: %d/100\n", m.Score)
		_, _ = fmt.Fprintf(w, "  Risk level:  %s\n", m.RiskLevel)
		_, _ = fmt.Fprintf(w, "  Claims:      %d verified, %d partial, %d unsupported\n",
			m.VerifiedCount, m.PartialCount, m.UnsupportedCount)
		if m.TotalClaims == 0 {
			_, _ = fmt.Fprintln(w, "  Note:        no claims were verified")
		}
	}
	if len(run.Dropped) > 0 {
		_, _ = fmt.Fprintf(w, "  Dropped:     %d\n", len(run.Dropped))
	}
	_, _ = fmt.Fprintln(w)

	for _, res := range run.Results {
		_, _ = fmt.Fprintf(w, "  %s %s\n", statusIcon(res.Status), res.ClaimText)
	}
	if len(run.Results) > 0 {
		_, _ = fmt.Fprintln(w)
	}
}

func statusIcon(c model.Classification) string {
	switch c {
	case model.ClassificationVerified:
		return "✓"
	case model.ClassificationPartial:
		return "~"
	default:
		return "✗"
	}
}

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
