package domain

import dErrors "veridoc/pkg/domain-errors"

// VerificationType identifies which checks a verification must run before it
// can complete.
type VerificationType string

const (
	// VerificationTypeIdentity requires a government ID and a selfie.
	VerificationTypeIdentity VerificationType = "IDENTITY"
	// VerificationTypeFullKYC runs the identity checks plus document-number
	// validation against jurisdiction rules.
	VerificationTypeFullKYC VerificationType = "FULL_KYC"
	// VerificationTypeSelfieOnly skips document checks entirely.
	VerificationTypeSelfieOnly VerificationType = "SELFIE_ONLY"
	// VerificationTypeDocumentOnly checks the document without biometrics.
	VerificationTypeDocumentOnly VerificationType = "DOCUMENT_ONLY"
)

var validVerificationTypes = map[VerificationType]bool{
	VerificationTypeIdentity:     true,
	VerificationTypeFullKYC:      true,
	VerificationTypeSelfieOnly:   true,
	VerificationTypeDocumentOnly: true,
}

// ParseVerificationType constructs a VerificationType from external input.
// An empty value defaults to IDENTITY.
func ParseVerificationType(s string) (VerificationType, error) {
	if s == "" {
		return VerificationTypeIdentity, nil
	}
	t := VerificationType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid verification type")
	}
	return t, nil
}

func (t VerificationType) IsValid() bool {
	return validVerificationTypes[t]
}

// RequiresDocument reports whether at least one identity document must be
// uploaded before submission.
func (t VerificationType) RequiresDocument() bool {
	return t != VerificationTypeSelfieOnly
}

// RequiresSelfie reports whether a selfie must be uploaded before submission.
func (t VerificationType) RequiresSelfie() bool {
	return t != VerificationTypeDocumentOnly
}

func (t VerificationType) String() string {
	return string(t)
}
