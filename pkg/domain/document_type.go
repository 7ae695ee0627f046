package domain

import dErrors "veridoc/pkg/domain-errors"

// DocumentType identifies the kind of artifact uploaded to a verification.
// Invariant: the value must be one of the supported document types.
//
// Usage: construct via ParseDocumentType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type DocumentType string

const (
	DocumentTypeDriversLicense    DocumentType = "DRIVERS_LICENSE"
	DocumentTypePassport          DocumentType = "PASSPORT"
	DocumentTypeNationalID        DocumentType = "NATIONAL_ID"
	DocumentTypeResidencePermit   DocumentType = "RESIDENCE_PERMIT"
	DocumentTypePermanentResident DocumentType = "PERMANENT_RESIDENT_CARD"
	DocumentTypeSelfie            DocumentType = "SELFIE"
)

// validDocumentTypes is the single source of truth for supported types.
var validDocumentTypes = map[DocumentType]bool{
	DocumentTypeDriversLicense:    true,
	DocumentTypePassport:          true,
	DocumentTypeNationalID:        true,
	DocumentTypeResidencePermit:   true,
	DocumentTypePermanentResident: true,
	DocumentTypeSelfie:            true,
}

// ParseDocumentType constructs a DocumentType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseDocumentType(s string) (DocumentType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document type cannot be empty")
	}
	t := DocumentType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid document type")
	}
	return t, nil
}

// IsValid checks if the document type is one of the supported enum values.
func (t DocumentType) IsValid() bool {
	return validDocumentTypes[t]
}

// IsIdentityDocument reports whether the type is a government ID as opposed
// to a selfie capture.
func (t DocumentType) IsIdentityDocument() bool {
	return t.IsValid() && t != DocumentTypeSelfie
}

// String returns the string representation of the document type.
func (t DocumentType) String() string {
	return string(t)
}

// DocumentSide distinguishes the front and back of card-format documents.
type DocumentSide string

const (
	DocumentSideFront DocumentSide = "FRONT"
	DocumentSideBack  DocumentSide = "BACK"
)

// ParseDocumentSide constructs a DocumentSide from external input. An empty
// value defaults to FRONT since single-sided uploads are the common case.
func ParseDocumentSide(s string) (DocumentSide, error) {
	switch DocumentSide(s) {
	case "":
		return DocumentSideFront, nil
	case DocumentSideFront, DocumentSideBack:
		return DocumentSide(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid document side")
}

func (s DocumentSide) String() string {
	return string(s)
}
