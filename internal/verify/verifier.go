package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/credence/internal/capability"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/validate"
	"github.com/ppiankov/credence/internal/worker"
)

// Verifier classifies claims against a corpus through a fact-check capability
type Verifier struct {
	checker capability.FactChecker
	workers int
	logger  *slog.Logger
}

// NewVerifier creates a verifier that runs at most workers checks at once
func NewVerifier(checker capability.FactChecker, workers int, logger *slog.Logger) *Verifier {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		checker: checker,
		workers: workers,
		logger:  logger,
	}
}

// DropError explains why a claim produced no result
type DropError struct {
	Reason model.DropReason
	Err    error
}

func (e *DropError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *DropError) Unwrap() error {
	return e.Err
}

// Verify checks one claim. The returned error is always a *DropError.
// The claim text in the result is the extracted text, not the capability's echo.
func (v *Verifier) Verify(ctx context.Context, claim model.Claim, corpus model.Corpus) (model.VerificationResult, error) {
	resp, err := v.checker.Check(ctx, capability.CheckRequest{
		Claim:     claim.Text,
		Documents: corpus,
	})
	if err != nil {
		reason := model.DropCapabilityError
		if errors.Is(err, capability.ErrInvalidResponse) {
			reason = model.DropInvalidResponse
		}
		return model.VerificationResult{}, &DropError{Reason: reason, Err: err}
	}

	resp.Status = capability.NormalizeStatus(resp.Status)
	if err := capability.Validate(resp); err != nil {
		return model.VerificationResult{}, &DropError{Reason: model.DropInvalidResponse, Err: err}
	}

	status, _ := capability.Classification(resp.Status)

	evidence, err := validate.NewEvidenceValidator(corpus).Validate(resp.Evidence)
	if err != nil {
		return model.VerificationResult{}, &DropError{Reason: model.DropFabricatedEvidence, Err: err}
	}

	return model.VerificationResult{
		ClaimID:    claim.ID,
		ClaimText:  claim.Text,
		Status:     status,
		Confidence: resp.Confidence,
		Reasoning:  resp.Reasoning,
		Evidence:   evidence,
	}, nil
}

// checkJob verifies one claim on the worker pool
type checkJob struct {
	index    int
	claim    model.Claim
	corpus   model.Corpus
	verifier *Verifier
}

type checkResult struct {
	index  int
	result model.VerificationResult
	err    error
}

func (r *checkResult) GetError() error {
	return r.err
}

// Execute runs the check, converting a panic into a dropped claim
func (j *checkJob) Execute(ctx context.Context) (res worker.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = &checkResult{
				index: j.index,
				err:   &DropError{Reason: model.DropCapabilityError, Err: fmt.Errorf("panic: %v", p)},
			}
		}
	}()

	result, err := j.verifier.Verify(ctx, j.claim, j.corpus)
	return &checkResult{index: j.index, result: result, err: err}
}

// VerifyAll checks every claim concurrently and joins the results by claim
// position, so the output follows extraction order regardless of completion
// order. Claims that fail are returned as dropped rather than as an error.
// It returns only after every dispatched check has finished.
func (v *Verifier) VerifyAll(ctx context.Context, claims []model.Claim, corpus model.Corpus) ([]model.VerificationResult, []model.DroppedClaim) {
	if len(claims) == 0 {
		return []model.VerificationResult{}, []model.DroppedClaim{}
	}

	workers := v.workers
	if workers > len(claims) {
		workers = len(claims)
	}

	pool := worker.NewPool(ctx, workers)
	pool.Start()
	for i, c := range claims {
		pool.Submit(&checkJob{index: i, claim: c, corpus: corpus, verifier: v})
	}

	slots := make([]*checkResult, len(claims))
	for _, r := range pool.Wait() {
		cr := r.(*checkResult)
		slots[cr.index] = cr
	}

	results := make([]model.VerificationResult, 0, len(claims))
	dropped := make([]model.DroppedClaim, 0)

	for i, slot := range slots {
		claim := claims[i]

		if slot == nil {
			// Never picked up: the run was cancelled
			err := ctx.Err()
			if err == nil {
				err = errors.New("check was not executed")
			}
			slot = &checkResult{index: i, err: &DropError{Reason: model.DropCapabilityError, Err: err}}
		}

		if slot.err != nil {
			reason := model.DropCapabilityError
			var dropErr *DropError
			if errors.As(slot.err, &dropErr) {
				reason = dropErr.Reason
			}
			v.logger.Warn("Dropping claim", "claim_id", claim.ID, "reason", reason, "error", slot.err)
			dropped = append(dropped, model.DroppedClaim{
				ClaimID:   claim.ID,
				ClaimText: claim.Text,
				Reason:    reason,
				Error:     slot.err.Error(),
			})
			continue
		}

		results = append(results, slot.result)
	}

	return results, dropped
}
