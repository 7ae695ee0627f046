// Package providers defines the capability ports for pluggable external
// services: structured document extraction, general vision analysis, local
// OCR, face comparison, and face-attribute/liveness analysis.
//
// Fallback chains are ordered lists of these interfaces tried in sequence
// under a shared timeout contract; configuration decides which are enabled.
// Provider failures trigger the next link in the chain, never the caller.
package providers

import (
	"context"
	"errors"

	id "veridoc/pkg/domain"
)

// ErrUnsupported signals that a provider cannot handle the given input (for
// example a document type outside its configured jurisdictions). Chains skip
// to the next provider without recording a failure.
var ErrUnsupported = errors.New("provider does not support this input")

// Entity is one named field returned by a structured-extraction provider.
// Keys are provider-specific; the extraction engine maps them onto canonical
// field names through its normalization table.
type Entity struct {
	Key        string
	Value      string
	Confidence float64
}

// StructuredResult is the typed output of a structured-extraction provider.
type StructuredResult struct {
	Entities     []Entity
	DocumentType id.DocumentType
	Confidence   float64
}

// StructuredExtractor returns typed entities for a known document type and
// jurisdiction. Highest-priority link in the extraction chain.
type StructuredExtractor interface {
	Name() string
	SupportsType(docType id.DocumentType) bool
	Extract(ctx context.Context, image []byte, docType id.DocumentType) (*StructuredResult, error)
}

// VisionResult carries label and raw-text detection from a general vision
// provider.
type VisionResult struct {
	Labels []string
	Text   string
}

// VisionAnalyzer runs label and text detection without document-specific
// knowledge. Second link in the extraction chain and the classifier's
// keyword source.
type VisionAnalyzer interface {
	Name() string
	Analyze(ctx context.Context, image []byte) (*VisionResult, error)
}

// OCREngine recognizes raw text only. Final link in the extraction chain.
type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (string, error)
}

// FaceComparison is a dedicated comparison provider's verdict. Similarity is
// on a 0-100 scale, matching the common cloud-provider convention.
type FaceComparison struct {
	Similarity float64
	Confidence float64
}

// FaceComparer compares the face in source against the face in target.
type FaceComparer interface {
	Name() string
	Compare(ctx context.Context, source, target []byte) (*FaceComparison, error)
}

// FaceAttributes carries the per-signal outputs of a face-attribute provider
// used for single-image liveness analysis.
type FaceAttributes struct {
	FaceCount           int
	DetectionConfidence float64
	EyesOpenConfidence  float64
	// PoseDeviation is the max absolute head rotation in degrees across
	// yaw/pitch/roll.
	PoseDeviation float64
	Brightness    float64
	Sharpness     float64
	Sunglasses    bool
	HasExpression bool
	// FaceAreaRatio is the detected face's share of the frame area.
	FaceAreaRatio float64
}

// FaceAttributeAnalyzer detects faces and scores the liveness-relevant
// attribute signals.
type FaceAttributeAnalyzer interface {
	Name() string
	Analyze(ctx context.Context, image []byte) (*FaceAttributes, error)
}
