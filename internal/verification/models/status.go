package models

// VerificationStatus is the lifecycle state of a verification attempt.
type VerificationStatus string

const (
	StatusPending    VerificationStatus = "PENDING"
	StatusInProgress VerificationStatus = "IN_PROGRESS"
	StatusCompleted  VerificationStatus = "COMPLETED"
	StatusFailed     VerificationStatus = "FAILED"
)

// validTransitions encodes the PENDING → IN_PROGRESS → {COMPLETED, FAILED}
// state machine. FAILED is terminal for the row itself; retries spawn a new
// chained row instead of reopening it.
var validTransitions = map[VerificationStatus][]VerificationStatus{
	StatusPending:    {StatusInProgress, StatusCompleted, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

func (s VerificationStatus) CanTransitionTo(target VerificationStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the row has reached a decision.
func (s VerificationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RiskLevel classifies how suspicious a verification's signals are,
// independent of the binary pass/fail outcome.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast returns the more severe of the two levels.
func (r RiskLevel) AtLeast(other RiskLevel) RiskLevel {
	if riskOrder[other] > riskOrder[r] {
		return other
	}
	return r
}

// Flag is a machine-readable reason code contributing to failure or risk.
type Flag string

const (
	FlagFaceMismatch        Flag = "FACE_MISMATCH"
	FlagNameMismatch        Flag = "NAME_MISMATCH"
	FlagDocumentExpired     Flag = "DOCUMENT_EXPIRED"
	FlagPossibleTampering   Flag = "POSSIBLE_TAMPERING"
	FlagLivenessFailed      Flag = "LIVENESS_FAILED"
	FlagLowQuality          Flag = "LOW_QUALITY"
	FlagImageFetchFailed    Flag = "IMAGE_FETCH_FAILED"
	FlagFaceComparisonError Flag = "FACE_COMPARISON_ERROR"
)
