package capability

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/util"
)

// Heuristic implements the capabilities offline with lexical overlap.
// It needs no model and is fully deterministic, which makes it the default
// when no provider is configured and the backbone of pipeline tests.
type Heuristic struct {
	// Knowledge is the text the generator answers from
	Knowledge model.Corpus

	// MaxSentences bounds the generated answer (default 3)
	MaxSentences int

	// VerifiedThreshold and PartialThreshold are the fractions of claim terms
	// that must appear in one corpus sentence (defaults 0.75 and 0.4)
	VerifiedThreshold float64
	PartialThreshold  float64
}

// NewHeuristic creates offline capabilities answering from knowledge
func NewHeuristic(knowledge model.Corpus) *Heuristic {
	return &Heuristic{
		Knowledge:         knowledge,
		MaxSentences:      3,
		VerifiedThreshold: 0.75,
		PartialThreshold:  0.4,
	}
}

// Set returns the capability set served by the heuristics
func (h *Heuristic) Set() Set {
	return Set{Generator: h, Decomposer: h, FactChecker: h}
}

type sentenceRef struct {
	doc   int
	pos   int
	text  string
	terms map[string]bool
}

func indexSentences(docs []string) []sentenceRef {
	var refs []sentenceRef
	for d, doc := range docs {
		for p, s := range util.SplitSentences(doc) {
			refs = append(refs, sentenceRef{doc: d, pos: p, text: s, terms: util.TermSet(s)})
		}
	}
	return refs
}

// Generate builds an extractive answer from the knowledge sentences that
// share the most terms with the question. No overlap yields an empty answer.
func (h *Heuristic) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, err
	}

	question := util.TermSet(req.Question)
	if len(question) == 0 {
		return GenerateResponse{}, nil
	}

	type scored struct {
		ref   sentenceRef
		score int
	}
	var candidates []scored
	for _, ref := range indexSentences(h.Knowledge) {
		n := 0
		for t := range question {
			if ref.terms[t] {
				n++
			}
		}
		if n > 0 {
			candidates = append(candidates, scored{ref: ref, score: n})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	limit := h.MaxSentences
	if limit <= 0 {
		limit = 3
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	// Present the picked sentences in corpus order
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].ref, candidates[j].ref
		if a.doc != b.doc {
			return a.doc < b.doc
		}
		return a.pos < b.pos
	})

	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = stripLabel(normalizeSpace(c.ref.text))
	}

	return GenerateResponse{Answer: strings.Join(parts, " ")}, nil
}

// Decompose treats every declarative sentence with content words as a claim
func (h *Heuristic) Decompose(ctx context.Context, req DecomposeRequest) (DecomposeResponse, error) {
	if err := ctx.Err(); err != nil {
		return DecomposeResponse{}, err
	}

	var claims []ExtractedClaim
	for _, s := range util.SplitSentences(req.Answer) {
		if strings.HasSuffix(s, "?") || len(util.Terms(s)) < 2 {
			continue
		}
		claims = append(claims, ExtractedClaim{
			ClaimID:   len(claims) + 1,
			ClaimText: normalizeSpace(s),
		})
	}
	return DecomposeResponse{Claims: claims}, nil
}

// Check classifies a claim by the corpus sentence sharing the most of its
// terms. Numbers in the claim that the best sentence does not contain mark
// the claim as contradicted.
func (h *Heuristic) Check(ctx context.Context, req CheckRequest) (CheckResponse, error) {
	if err := ctx.Err(); err != nil {
		return CheckResponse{}, err
	}

	claimTerms := util.TermSet(req.Claim)
	resp := CheckResponse{
		Claim:      req.Claim,
		Status:     StatusUnsupported,
		Confidence: 0.5,
		Reasoning:  "No document mentions the subject of this claim.",
		Evidence:   []string{},
	}
	if len(claimTerms) == 0 {
		return resp, nil
	}

	var best sentenceRef
	bestOverlap := 0.0
	for _, ref := range indexSentences(req.Documents) {
		n := 0
		for t := range claimTerms {
			if ref.terms[t] {
				n++
			}
		}
		overlap := float64(n) / float64(len(claimTerms))
		if overlap > bestOverlap {
			best, bestOverlap = ref, overlap
		}
	}

	if bestOverlap < h.partial() {
		return resp, nil
	}

	resp.Evidence = []string{best.text}
	var missing []string
	for t := range claimTerms {
		if isNumeric(t) && !best.terms[t] {
			missing = append(missing, t)
		}
	}

	switch {
	case len(missing) > 0:
		sort.Strings(missing)
		resp.Status = StatusUnsupported
		resp.Confidence = round2(0.5 + bestOverlap/2)
		resp.Reasoning = "The closest document states different figures (" + strings.Join(missing, ", ") + " not found)."
	case bestOverlap >= h.verified():
		resp.Status = StatusVerified
		resp.Confidence = round2(bestOverlap)
		resp.Reasoning = "A document states this claim directly."
	default:
		resp.Status = StatusPartiallySupported
		resp.Confidence = round2(bestOverlap)
		resp.Reasoning = "A document covers part of this claim but not all of its details."
	}
	return resp, nil
}

func (h *Heuristic) verified() float64 {
	if h.VerifiedThreshold > 0 {
		return h.VerifiedThreshold
	}
	return 0.75
}

func (h *Heuristic) partial() float64 {
	if h.PartialThreshold > 0 {
		return h.PartialThreshold
	}
	return 0.4
}

func isNumeric(term string) bool {
	for _, r := range term {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return term != ""
}

func round2(x float64) float64 {
	return float64(int(x*100+0.5)) / 100
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripLabel drops a leading "Title:" heading from a corpus sentence
func stripLabel(s string) string {
	if i := strings.Index(s, ": "); i > 0 && i < 60 && !strings.ContainsAny(s[:i], ".!?") {
		return strings.TrimSpace(s[i+2:])
	}
	return s
}
