package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/credence/internal/model"
)

// Runner executes one full pipeline run for a question
type Runner interface {
	Run(ctx context.Context, question string) (*model.Run, error)
}

// RunJob is a single question submitted to the pool
type RunJob struct {
	Index    int
	Question string
	Runner   Runner
}

// Execute executes the run job
func (j *RunJob) Execute(ctx context.Context) Result {
	run, err := j.Runner.Run(ctx, j.Question)
	return &RunResult{
		Index:    j.Index,
		Question: j.Question,
		Run:      run,
		Error:    err,
	}
}

// RunResult is the outcome of a RunJob. Run may be non-nil even when
// Error is set; it then holds the failed run record.
type RunResult struct {
	Index    int
	Question string
	Run      *model.Run
	Error    error
}

// GetError returns the error from the run result
func (r *RunResult) GetError() error {
	return r.Error
}

// BatchProcessor runs many questions concurrently
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessQuestions runs every question and returns results in input order
func (b *BatchProcessor) ProcessQuestions(ctx context.Context, questions []string) []*RunResult {
	if len(questions) == 0 {
		return []*RunResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, q := range questions {
		pool.Submit(&RunJob{
			Index:    i,
			Question: q,
			Runner:   b.runner,
		})
	}

	results := pool.Wait()

	ordered := make([]*RunResult, len(questions))
	for _, result := range results {
		r := result.(*RunResult)
		ordered[r.Index] = r
	}

	// Jobs never picked up because ctx was cancelled
	for i, r := range ordered {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("question was not processed")
			}
			ordered[i] = &RunResult{Index: i, Question: questions[i], Error: err}
		}
	}

	return ordered
}

// ProcessFile reads questions from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*RunResult, error) {
	questions, err := ReadQuestionsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	return b.ProcessQuestions(ctx, questions), nil
}

// ReadQuestionsFromFile reads questions from a file (one per line).
// Blank lines and lines starting with # are skipped; duplicates are dropped.
func ReadQuestionsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var questions []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			questions = append(questions, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return questions, nil
}

// Summary aggregates a batch for reporting
type Summary struct {
	Total    int `json:"total"`
	Complete int `json:"complete"`
	Failed   int `json:"failed"`
	LowRisk  int `json:"low_risk"`
	MedRisk  int `json:"medium_risk"`
	HighRisk int `json:"high_risk"`
}

// Summarize counts outcomes and risk levels across results
func Summarize(results []*RunResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Error != nil || r.Run == nil || r.Run.Metrics == nil {
			s.Failed++
			continue
		}
		s.Complete++
		switch r.Run.Metrics.RiskLevel {
		case model.RiskLow:
			s.LowRisk++
		case model.RiskMedium:
			s.MedRisk++
		case model.RiskHigh:
			s.HighRisk++
		}
	}
	return s
}
