package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/credence/internal/cache"
	"github.com/ppiankov/credence/internal/capability"
	"github.com/ppiankov/credence/internal/model"
)

var corpus = model.Corpus{
	"Financial Report 2024: The company saw a 15% increase in revenue compared to Q3 2023.",
	"Product Roadmap: Version 2.0 of the core AI engine is scheduled for release in November 2024.",
}

// scriptedChecker answers per claim text
type scriptedChecker struct {
	mu        sync.Mutex
	responses map[string]capability.CheckResponse
	errs      map[string]error
	delays    map[string]time.Duration
	seen      []capability.CheckRequest
	inflight  atomic.Int32
	peak      atomic.Int32
}

func (s *scriptedChecker) Check(ctx context.Context, req capability.CheckRequest) (capability.CheckResponse, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.seen = append(s.seen, req)
	resp, ok := s.responses[req.Claim]
	err := s.errs[req.Claim]
	delay := s.delays[req.Claim]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return capability.CheckResponse{}, ctx.Err()
		}
	}
	if err != nil {
		return capability.CheckResponse{}, err
	}
	if !ok {
		panic("unexpected claim " + req.Claim)
	}
	return resp, nil
}

func verified(evidence ...string) capability.CheckResponse {
	return capability.CheckResponse{Status: capability.StatusVerified, Confidence: 0.9, Reasoning: "ok", Evidence: evidence}
}

func claims(texts ...string) []model.Claim {
	out := make([]model.Claim, len(texts))
	for i, t := range texts {
		out[i] = model.Claim{ID: i + 1, Text: t}
	}
	return out
}

func TestVerifier_Verify_MapsStatus(t *testing.T) {
	tests := []struct {
		status string
		want   model.Classification
	}{
		{"VERIFIED", model.ClassificationVerified},
		{"PARTIALLY_SUPPORTED", model.ClassificationPartial},
		{"UNSUPPORTED", model.ClassificationUnsupported},
		{"partially supported", model.ClassificationPartial},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			checker := &scriptedChecker{responses: map[string]capability.CheckResponse{
				"c": {Claim: "echoed differently", Status: tt.status, Confidence: 0.5},
			}}
			v := NewVerifier(checker, 1, nil)

			res, err := v.Verify(context.Background(), model.Claim{ID: 4, Text: "c"}, corpus)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, 4, res.ClaimID)
			assert.Equal(t, "c", res.ClaimText)
		})
	}
}

func TestVerifier_Verify_PassesFullCorpus(t *testing.T) {
	checker := &scriptedChecker{responses: map[string]capability.CheckResponse{"c": verified()}}

	_, err := NewVerifier(checker, 1, nil).Verify(context.Background(), model.Claim{ID: 1, Text: "c"}, corpus)
	require.NoError(t, err)
	require.Len(t, checker.seen, 1)
	assert.Equal(t, corpus, checker.seen[0].Documents)
}

func TestVerifier_Verify_DropReasons(t *testing.T) {
	tests := []struct {
		name   string
		resp   capability.CheckResponse
		err    error
		reason model.DropReason
	}{
		{
			name:   "capability failure",
			err:    errors.New("timeout"),
			reason: model.DropCapabilityError,
		},
		{
			name:   "undecodable response",
			err:    fmt.Errorf("%w: bad json", capability.ErrInvalidResponse),
			reason: model.DropInvalidResponse,
		},
		{
			name:   "unknown status",
			resp:   capability.CheckResponse{Status: "MAYBE", Confidence: 0.5},
			reason: model.DropInvalidResponse,
		},
		{
			name:   "confidence out of range",
			resp:   capability.CheckResponse{Status: "VERIFIED", Confidence: 7},
			reason: model.DropInvalidResponse,
		},
		{
			name:   "fabricated evidence",
			resp:   verified("15% increase in revenue", "revenue doubled"),
			reason: model.DropFabricatedEvidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &scriptedChecker{
				responses: map[string]capability.CheckResponse{"c": tt.resp},
				errs:      map[string]error{"c": tt.err},
			}

			_, err := NewVerifier(checker, 1, nil).Verify(context.Background(), model.Claim{ID: 1, Text: "c"}, corpus)
			var dropErr *DropError
			require.True(t, errors.As(err, &dropErr), "got %v", err)
			assert.Equal(t, tt.reason, dropErr.Reason)
		})
	}
}

func TestVerifier_Verify_CleansEvidence(t *testing.T) {
	checker := &scriptedChecker{responses: map[string]capability.CheckResponse{
		"c": verified(" Version 2.0 ", "", "November 2024"),
	}}

	res, err := NewVerifier(checker, 1, nil).Verify(context.Background(), model.Claim{ID: 1, Text: "c"}, corpus)
	require.NoError(t, err)
	assert.Equal(t, []string{"Version 2.0", "November 2024"}, res.Evidence)
}

func TestVerifier_VerifyAll_PreservesOrder(t *testing.T) {
	// Earlier claims finish last
	checker := &scriptedChecker{
		responses: map[string]capability.CheckResponse{},
		delays:    map[string]time.Duration{},
	}
	texts := []string{"a", "b", "c", "d", "e", "f"}
	for i, text := range texts {
		checker.responses[text] = verified()
		checker.delays[text] = time.Duration(len(texts)-i) * 10 * time.Millisecond
	}

	results, dropped := NewVerifier(checker, 6, nil).VerifyAll(context.Background(), claims(texts...), corpus)

	assert.Empty(t, dropped)
	require.Len(t, results, len(texts))
	for i, r := range results {
		assert.Equal(t, i+1, r.ClaimID)
		assert.Equal(t, texts[i], r.ClaimText)
	}
	assert.Greater(t, checker.peak.Load(), int32(1), "checks should run concurrently")
}

func TestVerifier_VerifyAll_BoundedConcurrency(t *testing.T) {
	checker := &scriptedChecker{responses: map[string]capability.CheckResponse{}, delays: map[string]time.Duration{}}
	var texts []string
	for i := 0; i < 12; i++ {
		text := fmt.Sprintf("claim %d", i)
		texts = append(texts, text)
		checker.responses[text] = verified()
		checker.delays[text] = 5 * time.Millisecond
	}

	results, _ := NewVerifier(checker, 3, nil).VerifyAll(context.Background(), claims(texts...), corpus)
	assert.Len(t, results, 12)
	assert.LessOrEqual(t, checker.peak.Load(), int32(3))
}

func TestVerifier_VerifyAll_DropsFailuresAndKeepsTheRest(t *testing.T) {
	checker := &scriptedChecker{
		responses: map[string]capability.CheckResponse{
			"good one":  verified("15% increase in revenue"),
			"fabricate": verified("a quote nobody wrote"),
			"good two":  {Status: "UNSUPPORTED", Confidence: 0.8},
		},
		errs: map[string]error{"broken": errors.New("503")},
	}

	results, dropped := NewVerifier(checker, 2, nil).VerifyAll(context.Background(),
		claims("good one", "broken", "fabricate", "good two", "panics"), corpus)

	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].ClaimID)
	assert.Equal(t, 4, results[1].ClaimID)

	require.Len(t, dropped, 3)
	assert.Equal(t, model.DroppedClaim{ClaimID: 2, ClaimText: "broken", Reason: model.DropCapabilityError, Error: dropped[0].Error}, dropped[0])
	assert.Equal(t, model.DropFabricatedEvidence, dropped[1].Reason)
	assert.Equal(t, 5, dropped[2].ClaimID)
	assert.Contains(t, dropped[2].Error, "panic")
}

func TestVerifier_VerifyAll_Empty(t *testing.T) {
	results, dropped := NewVerifier(&scriptedChecker{}, 4, nil).VerifyAll(context.Background(), nil, corpus)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, dropped)
}

func TestVerifier_VerifyAll_Cancelled(t *testing.T) {
	checker := &scriptedChecker{
		responses: map[string]capability.CheckResponse{"a": verified(), "b": verified()},
		delays:    map[string]time.Duration{"a": time.Second, "b": time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	results, dropped := NewVerifier(checker, 1, nil).VerifyAll(ctx, claims("a", "b"), corpus)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, results)
	require.Len(t, dropped, 2)
	for _, d := range dropped {
		assert.Equal(t, model.DropCapabilityError, d.Reason)
	}
}

// correctingChecker cites text outside the corpus on its first call only
type correctingChecker struct {
	calls atomic.Int32
}

func (c *correctingChecker) Check(ctx context.Context, req capability.CheckRequest) (capability.CheckResponse, error) {
	evidence := "15% increase in revenue"
	if c.calls.Add(1) == 1 {
		evidence = "made up quote"
	}
	return capability.CheckResponse{
		Claim:      req.Claim,
		Status:     capability.StatusVerified,
		Confidence: 0.9,
		Evidence:   []string{evidence},
	}, nil
}

func TestVerifier_DroppedVerdictIsNotReplayedFromCache(t *testing.T) {
	inner := &correctingChecker{}
	set := capability.Wrap(capability.Set{FactChecker: inner}, capability.Options{
		Provider: "fake",
		Cache:    cache.NewMemoryCache(time.Minute, time.Minute),
	})
	v := NewVerifier(set.FactChecker, 1, nil)
	claim := model.Claim{ID: 1, Text: "Revenue grew 15%."}

	_, err := v.Verify(context.Background(), claim, corpus)
	var drop *DropError
	require.ErrorAs(t, err, &drop)
	assert.Equal(t, model.DropFabricatedEvidence, drop.Reason)

	res, err := v.Verify(context.Background(), claim, corpus)
	require.NoError(t, err)
	assert.Equal(t, model.ClassificationVerified, res.Status)
	assert.Equal(t, []string{"15% increase in revenue"}, res.Evidence)

	_, err = v.Verify(context.Background(), claim, corpus)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}
