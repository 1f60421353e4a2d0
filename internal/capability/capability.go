// Package capability defines the three external inference boundaries of the
// pipeline (answer generation, claim decomposition and fact checking), their
// LLM-backed and offline implementations, and the middleware that wraps them.
//
// Every call is nondeterministic: the same request may produce a different
// response on the next call, and callers must not assume otherwise.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/credence/internal/model"
)

// ErrInvalidResponse is returned when a capability answers with output that
// does not match its schema
var ErrInvalidResponse = errors.New("invalid capability response")

// Capability names, used for metrics, rate-limit keys and cache namespaces
const (
	NameGenerate  = "generate"
	NameDecompose = "decompose"
	NameCheck     = "check"
)

// Fact-check statuses as returned by the capability
const (
	StatusVerified           = "VERIFIED"
	StatusPartiallySupported = "PARTIALLY_SUPPORTED"
	StatusUnsupported        = "UNSUPPORTED"
)

// GenerateRequest asks for an initial answer to a question
type GenerateRequest struct {
	Question string `json:"question"`
}

// GenerateResponse carries the generated answer
type GenerateResponse struct {
	Answer string `json:"answer"`
}

// Generator produces an answer for a question
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// DecomposeRequest asks for the atomic claims of an answer
type DecomposeRequest struct {
	Answer string `json:"answer"`
}

// ExtractedClaim is one claim as returned by the decomposition capability
type ExtractedClaim struct {
	ClaimID   int    `json:"claim_id"`
	ClaimText string `json:"claim_text" validate:"required"`
}

// DecomposeResponse is the ordered list of extracted claims
type DecomposeResponse struct {
	Claims []ExtractedClaim `json:"claims" validate:"dive"`
}

// Decomposer breaks an answer into claims
type Decomposer interface {
	Decompose(ctx context.Context, req DecomposeRequest) (DecomposeResponse, error)
}

// CheckRequest asks whether one claim is supported by the documents
type CheckRequest struct {
	Claim     string       `json:"claim"`
	Documents model.Corpus `json:"documents"`
}

// CheckResponse is the fact-check verdict for one claim
type CheckResponse struct {
	Claim      string   `json:"claim"`
	Status     string   `json:"status" validate:"required,oneof=VERIFIED PARTIALLY_SUPPORTED UNSUPPORTED"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning  string   `json:"reasoning"`
	Evidence   []string `json:"evidence"`
}

// FactChecker classifies one claim against a corpus
type FactChecker interface {
	Check(ctx context.Context, req CheckRequest) (CheckResponse, error)
}

// Set bundles the three capabilities a pipeline needs
type Set struct {
	Generator   Generator
	Decomposer  Decomposer
	FactChecker FactChecker
}

var schema = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a capability response against its schema tags.
// Failures wrap ErrInvalidResponse.
func Validate(resp any) error {
	if err := schema.Struct(resp); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// NormalizeStatus upper-cases a status and folds the spellings models
// commonly produce ("partially supported", "Partially-Supported") onto the
// canonical form
func NormalizeStatus(status string) string {
	s := strings.ToUpper(strings.TrimSpace(status))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}

// Classification maps a capability status to the scoring vocabulary
func Classification(status string) (model.Classification, bool) {
	switch NormalizeStatus(status) {
	case StatusVerified:
		return model.ClassificationVerified, true
	case StatusPartiallySupported:
		return model.ClassificationPartial, true
	case StatusUnsupported:
		return model.ClassificationUnsupported, true
	default:
		return "", false
	}
}
