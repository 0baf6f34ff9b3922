// Package models holds the verification context's domain records.
package models

import (
	"attesto/pkg/domain"
)

// SubjectRecord is the per-subject verification state a source holds. A
// subject with no record reads as the zero record: no commitment, not
// verified. Overwrites are total; there is no partial update.
type SubjectRecord struct {
	Subject    domain.SubjectID
	Commitment domain.Commitment
	Verified   bool
}

// Zero returns the record an absent subject reads as.
func Zero(subject domain.SubjectID) SubjectRecord {
	return SubjectRecord{Subject: subject}
}
