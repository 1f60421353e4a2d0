package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/credence/internal/model"
)

// MockRunner implements Runner
type MockRunner struct {
	ShouldError bool
	Risk        model.RiskLevel
}

func (m *MockRunner) Run(ctx context.Context, question string) (*model.Run, error) {
	time.Sleep(10 * time.Millisecond) // Simulate work
	if m.ShouldError || strings.Contains(question, "fail") {
		return &model.Run{Question: question, Status: model.StatusError}, errors.New("run error")
	}
	risk := m.Risk
	if risk == "" {
		risk = model.RiskLow
	}
	return &model.Run{
		Question: question,
		Status:   model.StatusComplete,
		Metrics:  &model.TrustMetrics{Score: 90, RiskLevel: risk},
	}, nil
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "questions")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestBatchProcessor_ProcessQuestions(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 2)

	questions := []string{"What is A?", "What is B?", "What is C?"}
	results := processor.ProcessQuestions(context.Background(), questions)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %q: %v", res.Question, res.Error)
		}
		if res.Question != questions[i] {
			t.Errorf("expected result %d to be %q, got %q", i, questions[i], res.Question)
		}
		if res.Run == nil || res.Run.Status != model.StatusComplete {
			t.Errorf("expected complete run for %q", res.Question)
		}
	}
}

func TestBatchProcessor_ProcessQuestions_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 2)

	results := processor.ProcessQuestions(context.Background(), []string{"ok", "please fail"})

	if results[0].Error != nil {
		t.Errorf("unexpected error: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[1].Run == nil || results[1].Run.Status != model.StatusError {
		t.Error("expected failed run record to be kept")
	}
}

func TestBatchProcessor_ProcessQuestions_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 2)

	results := processor.ProcessQuestions(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessQuestions_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessQuestions(ctx, []string{"a", "b", "c"})
	if len(results) != 3 {
		t.Fatalf("expected a result slot per question, got %d", len(results))
	}
	for _, r := range results {
		if r == nil {
			t.Fatal("expected no nil results")
		}
	}
}

func TestReadQuestionsFromFile(t *testing.T) {
	path := writeTemp(t, "What is A?\n# comment\nWhat is B?\n   \n  What is C?  \nWhat is A?\n")

	questions, err := ReadQuestionsFromFile(path)
	if err != nil {
		t.Fatalf("ReadQuestionsFromFile failed: %v", err)
	}

	expected := []string{"What is A?", "What is B?", "What is C?"}
	if len(questions) != len(expected) {
		t.Fatalf("expected %d questions, got %d", len(expected), len(questions))
	}
	for i, q := range questions {
		if q != expected[i] {
			t.Errorf("expected %q at index %d, got %q", expected[i], i, q)
		}
	}
}

func TestReadQuestionsFromFile_NonExistent(t *testing.T) {
	_, err := ReadQuestionsFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestRunResult_GetError(t *testing.T) {
	r1 := &RunResult{Question: "q"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("run failed")
	r2 := &RunResult{Question: "q", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "q1\nq2\n# comment\n\nq3\n")

	processor := NewBatchProcessor(&MockRunner{}, 2)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockRunner{}, 2)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestSummarize(t *testing.T) {
	results := []*RunResult{
		{Run: &model.Run{Metrics: &model.TrustMetrics{RiskLevel: model.RiskLow}}},
		{Run: &model.Run{Metrics: &model.TrustMetrics{RiskLevel: model.RiskHigh}}},
		{Run: &model.Run{Metrics: &model.TrustMetrics{RiskLevel: model.RiskMedium}}},
		{Error: errors.New("boom")},
	}

	s := Summarize(results)
	if s.Total != 4 || s.Complete != 3 || s.Failed != 1 {
		t.Errorf("unexpected totals: %+v", s)
	}
	if s.LowRisk != 1 || s.MedRisk != 1 || s.HighRisk != 1 {
		t.Errorf("unexpected risk counts: %+v", s)
	}
}
