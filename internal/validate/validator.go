package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/credence/internal/model"
)

// ErrFabricatedEvidence is returned when a cited snippet does not occur
// verbatim in any corpus document
var ErrFabricatedEvidence = errors.New("evidence not found in corpus")

// EvidenceValidator checks that cited evidence is quoted from the corpus
type EvidenceValidator struct {
	corpus model.Corpus
}

// NewEvidenceValidator creates a validator bound to one run's corpus
func NewEvidenceValidator(corpus model.Corpus) *EvidenceValidator {
	return &EvidenceValidator{corpus: corpus}
}

// Validate returns the cleaned evidence list: snippets trimmed of
// surrounding whitespace, blank snippets removed. It fails with
// ErrFabricatedEvidence on the first snippet absent from every document.
func (v *EvidenceValidator) Validate(evidence []string) ([]string, error) {
	cleaned := make([]string, 0, len(evidence))
	for _, snippet := range evidence {
		snippet = strings.TrimSpace(snippet)
		if snippet == "" {
			continue
		}
		if !v.Contains(snippet) {
			return nil, fmt.Errorf("%w: %q", ErrFabricatedEvidence, truncate(snippet, 80))
		}
		cleaned = append(cleaned, snippet)
	}
	return cleaned, nil
}

// Contains reports whether snippet is a substring of some document
func (v *EvidenceValidator) Contains(snippet string) bool {
	for _, doc := range v.corpus {
		if strings.Contains(doc, snippet) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
