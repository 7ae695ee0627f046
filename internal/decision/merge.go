package decision

import (
	"sort"

	"veridoc/internal/extraction"
	"veridoc/internal/verification/models"
)

// MergeExtracted folds the extracted fields of every ID document on a
// verification into one record. Documents are applied oldest to newest so the
// newest document wins each field it actually carries; selfies never
// contribute fields.
func MergeExtracted(docs []*models.Document) *extraction.Data {
	ordered := make([]*models.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.IsSelfie() || doc.ExtractedData == nil {
			continue
		}
		ordered = append(ordered, doc)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	merged := &extraction.Data{}
	for _, doc := range ordered {
		applyFields(merged, doc.ExtractedData)
	}
	return merged
}

// applyFields overwrites merged with every non-empty field of next.
func applyFields(merged, next *extraction.Data) {
	if next.Surname != "" {
		merged.Surname = next.Surname
	}
	if next.GivenName != "" {
		merged.GivenName = next.GivenName
	}
	if next.FullName != "" {
		merged.FullName = next.FullName
	}
	if next.DocumentNumber != "" {
		merged.DocumentNumber = next.DocumentNumber
	}
	if next.DateOfBirth != nil {
		merged.DateOfBirth = next.DateOfBirth
	}
	if next.IssueDate != nil {
		merged.IssueDate = next.IssueDate
	}
	if next.ExpiryDate != nil {
		merged.ExpiryDate = next.ExpiryDate
	}
	if next.Address != "" {
		merged.Address = next.Address
	}
	if next.City != "" {
		merged.City = next.City
	}
	if next.State != "" {
		merged.State = next.State
	}
	if next.PostalCode != "" {
		merged.PostalCode = next.PostalCode
	}
	if next.Country != "" {
		merged.Country = next.Country
	}
	if next.Nationality != "" {
		merged.Nationality = next.Nationality
	}
	if next.Sex != "" {
		merged.Sex = next.Sex
	}
	if next.MRZ != "" {
		merged.MRZ = next.MRZ
	}
	if next.DocumentType != "" {
		merged.DocumentType = next.DocumentType
	}
	if next.Confidence > 0 {
		merged.Confidence = next.Confidence
	}
	if next.Source != "" {
		merged.Source = next.Source
	}
}
