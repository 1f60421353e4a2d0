package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/credence/internal/capability"
	"github.com/ppiankov/credence/internal/model"
)

// ClaimExtractor turns an answer into an ordered list of claims using a
// decomposition capability. It translates and validates the capability's
// output but makes no judgment on claim content.
type ClaimExtractor struct {
	decomposer capability.Decomposer
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(decomposer capability.Decomposer) *ClaimExtractor {
	return &ClaimExtractor{decomposer: decomposer}
}

// Extract decomposes answer into claims, re-indexed 1..n in the order the
// capability returned them. A blank answer or an empty capability result
// yields no claims and no error.
func (e *ClaimExtractor) Extract(ctx context.Context, answer string) ([]model.Claim, error) {
	if strings.TrimSpace(answer) == "" {
		return []model.Claim{}, nil
	}

	resp, err := e.decomposer.Decompose(ctx, capability.DecomposeRequest{Answer: answer})
	if err != nil {
		return nil, fmt.Errorf("decompose answer: %w", err)
	}

	if err := capability.AcceptDecompose(resp); err != nil {
		return nil, fmt.Errorf("decompose answer: %w", err)
	}

	claims := make([]model.Claim, len(resp.Claims))
	for i, c := range resp.Claims {
		claims[i] = model.Claim{ID: i + 1, Text: strings.TrimSpace(c.ClaimText)}
	}

	return claims, nil
}
