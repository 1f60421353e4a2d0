package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/credence/internal/capability"
	"github.com/ppiankov/credence/internal/extract"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/score"
	"github.com/ppiankov/credence/internal/telemetry"
	"github.com/ppiankov/credence/internal/verify"
)

var (
	// ErrEmptyQuestion is returned when Run is called without a question
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrEmptyAnswer is returned when there is no answer to verify
	ErrEmptyAnswer = errors.New("answer is empty")

	// ErrInvalidTransition is returned when a run would leave the state machine
	ErrInvalidTransition = errors.New("invalid run transition")

	// ErrPanic wraps a panic recovered inside a run
	ErrPanic = errors.New("run panicked")
)

// Options configures a Pipeline
type Options struct {
	// Workers bounds concurrent fact-check calls per run
	Workers int

	// RunTimeout caps a single run; zero means no limit
	RunTimeout time.Duration

	// Sink receives run snapshots; nil discards them
	Sink Sink

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Pipeline orchestrates generate -> extract -> verify -> score for one
// question at a time. A Pipeline holds no per-run state and may serve
// concurrent runs.
type Pipeline struct {
	generator  capability.Generator
	extractor  *extract.ClaimExtractor
	verifier   *verify.Verifier
	scorer     *score.Scorer
	corpus     model.Corpus
	sink       Sink
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	runTimeout time.Duration
	now        func() time.Time
}

// New creates a pipeline that verifies answers against corpus
func New(set capability.Set, corpus model.Corpus, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = MultiSink(nil)
	}

	return &Pipeline{
		generator:  set.Generator,
		extractor:  extract.NewClaimExtractor(set.Decomposer),
		verifier:   verify.NewVerifier(set.FactChecker, opts.Workers, logger),
		scorer:     score.NewScorer(),
		corpus:     corpus,
		sink:       sink,
		metrics:    opts.Metrics,
		logger:     logger,
		runTimeout: opts.RunTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Corpus returns the documents runs are verified against
func (p *Pipeline) Corpus() model.Corpus {
	return p.corpus
}

// WithCorpus returns a pipeline sharing p's capabilities and sink but
// verifying against a different corpus
func (p *Pipeline) WithCorpus(corpus model.Corpus) *Pipeline {
	cp := *p
	cp.corpus = corpus
	return &cp
}

// WithSink returns a pipeline that reports to sink in addition to p's sink
func (p *Pipeline) WithSink(sink Sink) *Pipeline {
	cp := *p
	cp.sink = MultiSink{p.sink, sink}
	return &cp
}

// Run generates an answer to question and verifies it.
// The returned run is never nil once the run has started; on failure it
// is in the error state and err describes why.
func (p *Pipeline) Run(ctx context.Context, question string) (*model.Run, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	return p.execute(ctx, question, "", true)
}

// Check verifies a caller-supplied answer, skipping generation
func (p *Pipeline) Check(ctx context.Context, question, answer string) (*model.Run, error) {
	return p.execute(ctx, question, answer, false)
}

func (p *Pipeline) execute(ctx context.Context, question, answer string, generate bool) (run *model.Run, err error) {
	start := time.Now()
	now := p.now()
	run = &model.Run{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    answer,
		Status:    model.StatusIdle,
		Claims:    []model.Claim{},
		Results:   []model.VerificationResult{},
		Dropped:   []model.DroppedClaim{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	log := p.logger.With("run_id", run.ID)

	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Recovered panic in run", "panic", rec)
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
			p.fail(ctx, run, err)
		}
		p.metrics.ObserveRun(run, time.Since(start))
	}()

	if generate {
		if err := p.transition(ctx, run, model.StatusGenerating); err != nil {
			return run, err
		}

		answer, err = p.generate(ctx, question)
		if err != nil {
			p.fail(ctx, run, err)
			return run, err
		}
		run.Answer = answer
		log.Debug("Generated answer", "chars", len(answer))
	} else if strings.TrimSpace(answer) == "" {
		// Nothing to verify: go straight through verifying to error
		if err := p.transition(ctx, run, model.StatusVerifying); err != nil {
			return run, err
		}
		p.fail(ctx, run, ErrEmptyAnswer)
		return run, ErrEmptyAnswer
	}

	if err := p.transition(ctx, run, model.StatusVerifying); err != nil {
		return run, err
	}

	claims, err := p.extractor.Extract(ctx, run.Answer)
	if err != nil {
		err = fmt.Errorf("extract claims: %w", err)
		p.fail(ctx, run, err)
		return run, err
	}
	run.Claims = claims
	log.Debug("Extracted claims", "count", len(claims))

	results, dropped := p.verifier.VerifyAll(ctx, claims, p.corpus)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("verify claims: %w", ctxErr)
		run.Dropped = dropped
		p.fail(ctx, run, err)
		return run, err
	}
	run.Results = results
	run.Dropped = dropped

	metrics := p.scorer.Calculate(results)
	run.Metrics = &metrics

	if err := p.transition(ctx, run, model.StatusComplete); err != nil {
		return run, err
	}
	log.Info("Run complete",
		"claims", len(claims),
		"verified", len(results),
		"dropped", len(dropped),
		"score", metrics.Score,
		"risk", metrics.RiskLevel)

	return run, nil
}

func (p *Pipeline) generate(ctx context.Context, question string) (string, error) {
	if p.generator == nil {
		return "", errors.New("generate answer: no generator configured")
	}

	resp, err := p.generator.Generate(ctx, capability.GenerateRequest{Question: question})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	answer := strings.TrimSpace(resp.Answer)
	if answer == "" {
		return "", fmt.Errorf("generate answer: %w", ErrEmptyAnswer)
	}
	return answer, nil
}

// transition moves run to next and reports the new snapshot
func (p *Pipeline) transition(ctx context.Context, run *model.Run, next model.RunStatus) error {
	if !run.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, run.Status, next)
	}

	p.logger.Debug("Run transition", "run_id", run.ID, "from", run.Status, "to", next)
	run.Status = next
	run.UpdatedAt = p.now()
	p.report(ctx, run)
	return nil
}

// fail moves run to the error state. Progress already reported stays
// reported and no metrics are computed.
func (p *Pipeline) fail(ctx context.Context, run *model.Run, cause error) {
	run.Error = cause.Error()
	run.Metrics = nil
	if err := p.transition(ctx, run, model.StatusError); err != nil {
		p.logger.Error("Cannot mark run as failed", "run_id", run.ID, "status", run.Status, "error", err)
	}
}

func (p *Pipeline) report(ctx context.Context, run *model.Run) {
	// Terminal snapshots must reach the sink even when the run was cancelled
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("Sink panicked", "run_id", run.ID, "panic", rec)
		}
	}()

	if err := p.sink.Report(ctx, run.Clone()); err != nil {
		p.logger.Warn("Sink report failed", "run_id", run.ID, "status", run.Status, "error", err)
	}
}
