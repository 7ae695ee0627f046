package decision

// Config centralizes every weight and threshold the decision engine uses.
// One immutable value is passed in at construction; nothing reads module
// globals, so tests can vary thresholds freely.
type Config struct {
	// Score weights. They sum to 1.
	QualityWeight  float64
	FaceWeight     float64
	NameWeight     float64
	LivenessWeight float64

	// MinQuality is the average document quality required to pass.
	MinQuality float64
	// TamperQualityThreshold marks extremely low quality as possible
	// tampering.
	TamperQualityThreshold float64
	// TamperOCRThreshold marks extremely low extraction confidence as
	// possible tampering.
	TamperOCRThreshold float64

	// NameMatchThreshold is the minimum fuzzy-name similarity counted as a
	// match.
	NameMatchThreshold float64

	// HighRiskQuality and MediumRiskQuality ladder average quality into the
	// risk level.
	HighRiskQuality   float64
	MediumRiskQuality float64
}

// DefaultConfig returns the production weights and thresholds.
func DefaultConfig() Config {
	return Config{
		QualityWeight:          0.20,
		FaceWeight:             0.35,
		NameWeight:             0.25,
		LivenessWeight:         0.20,
		MinQuality:             0.3,
		TamperQualityThreshold: 0.15,
		TamperOCRThreshold:     0.2,
		NameMatchThreshold:     0.8,
		HighRiskQuality:        0.5,
		MediumRiskQuality:      0.7,
	}
}
