package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/credence/internal/llm"
)

// LLM implements all three capabilities on top of a single llm.Provider
type LLM struct {
	provider llm.Provider
}

// NewLLM creates LLM-backed capabilities
func NewLLM(provider llm.Provider) *LLM {
	return &LLM{provider: provider}
}

// Set returns the capability set served by this provider
func (c *LLM) Set() Set {
	return Set{Generator: c, Decomposer: c, FactChecker: c}
}

// Generate asks the model for an initial answer
func (c *LLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.completeJSON(ctx, writerSystem, generatePrompt(req.Question), &resp); err != nil {
		return GenerateResponse{}, err
	}
	resp.Answer = strings.TrimSpace(resp.Answer)
	return resp, nil
}

// Decompose asks the model to break an answer into atomic claims
func (c *LLM) Decompose(ctx context.Context, req DecomposeRequest) (DecomposeResponse, error) {
	text, err := c.complete(ctx, decomposerSystem, decomposePrompt(req.Answer))
	if err != nil {
		return DecomposeResponse{}, err
	}

	// Models asked for an object sometimes still answer with the bare array
	if strings.HasPrefix(text, "[") {
		var claims []ExtractedClaim
		if err := json.Unmarshal([]byte(text), &claims); err != nil {
			return DecomposeResponse{}, fmt.Errorf("%w: decode claims: %v", ErrInvalidResponse, err)
		}
		return DecomposeResponse{Claims: claims}, nil
	}

	var resp DecomposeResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return DecomposeResponse{}, fmt.Errorf("%w: decode claims: %v", ErrInvalidResponse, err)
	}
	return resp, nil
}

// Check asks the model to classify one claim against the documents
func (c *LLM) Check(ctx context.Context, req CheckRequest) (CheckResponse, error) {
	var resp CheckResponse
	if err := c.completeJSON(ctx, checkerSystem, checkPrompt(req.Claim, req.Documents), &resp); err != nil {
		return CheckResponse{}, err
	}
	resp.Status = NormalizeStatus(resp.Status)
	return resp, nil
}

func (c *LLM) completeJSON(ctx context.Context, system, prompt string, out any) error {
	text, err := c.complete(ctx, system, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: decode %T: %v", ErrInvalidResponse, out, err)
	}
	return nil
}

func (c *LLM) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		System: system,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.provider.Name(), err)
	}
	return llm.CleanJSON(resp.Text), nil
}
