package model

// Claim represents an atomic factual assertion extracted from an answer
type Claim struct {
	ID   int    `json:"id" bson:"id"`     // 1-based position in extraction order
	Text string `json:"text" bson:"text"` // The claim text itself
}

// Classification is the support level assigned to a claim by the verifier
type Classification string

const (
	ClassificationVerified    Classification = "verified"            // Directly supported by the corpus
	ClassificationPartial     Classification = "partially supported" // Consistent with the corpus but not fully cited
	ClassificationUnsupported Classification = "unsupported"         // Not supported or contradicted
)

// Valid reports whether c is one of the canonical classifications
func (c Classification) Valid() bool {
	switch c {
	case ClassificationVerified, ClassificationPartial, ClassificationUnsupported:
		return true
	default:
		return false
	}
}

// Weight returns the base-credibility weight of the classification
func (c Classification) Weight() float64 {
	switch c {
	case ClassificationVerified:
		return 1.0
	case ClassificationPartial:
		return 0.5
	default:
		return 0.0
	}
}

// Corpus is the ordered, immutable set of reference documents for a run
type Corpus []string
