package model

// VerificationResult is the verdict for a single claim
type VerificationResult struct {
	ClaimID    int            `json:"claim_id" bson:"claim_id"`
	ClaimText  string         `json:"claim_text" bson:"claim_text"`
	Status     Classification `json:"status" bson:"status"`
	Confidence float64        `json:"confidence" bson:"confidence"` // 0..1
	Reasoning  string         `json:"reasoning" bson:"reasoning"`
	Evidence   []string       `json:"evidence" bson:"evidence"` // Verbatim corpus snippets
}

// DropReason explains why a claim has no verification result
type DropReason string

const (
	DropCapabilityError    DropReason = "capability_error"    // Fact-check call failed
	DropInvalidResponse    DropReason = "invalid_response"    // Response failed schema validation
	DropFabricatedEvidence DropReason = "fabricated_evidence" // Cited text not found in the corpus
)

// DroppedClaim records a claim that was excluded from scoring
type DroppedClaim struct {
	ClaimID   int        `json:"claim_id" bson:"claim_id"`
	ClaimText string     `json:"claim_text" bson:"claim_text"`
	Reason    DropReason `json:"reason" bson:"reason"`
	Error     string     `json:"error,omitempty" bson:"error,omitempty"`
}

// RiskLevel is the coarse trust tier of an answer
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// TrustMetrics is the aggregate of a set of verification results.
// It is derived data and is always recomputed, never updated in place.
type TrustMetrics struct {
	Score            int       `json:"score" bson:"score"` // 0..100
	VerifiedCount    int       `json:"verified_count" bson:"verified_count"`
	PartialCount     int       `json:"partial_count" bson:"partial_count"`
	UnsupportedCount int       `json:"unsupported_count" bson:"unsupported_count"`
	TotalClaims      int       `json:"total_claims" bson:"total_claims"`
	AvgConfidence    int       `json:"avg_confidence" bson:"avg_confidence"` // Percentage 0..100
	RiskLevel        RiskLevel `json:"risk_level" bson:"risk_level"`
}
