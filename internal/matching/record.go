package matching

import (
	"time"

	"github.com/rotisserie/eris"
)

// Match record statuses. New records start pending; the rest are set by
// reviewers and survive rescoring.
const (
	StatusPending   = "pending"
	StatusReviewed  = "reviewed"
	StatusContacted = "contacted"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
)

var statuses = map[string]bool{
	StatusPending:   true,
	StatusReviewed:  true,
	StatusContacted: true,
	StatusAccepted:  true,
	StatusRejected:  true,
}

// ValidateStatus rejects unknown match statuses.
func ValidateStatus(s string) error {
	if !statuses[s] {
		return eris.Errorf("matching: unknown status %q", s)
	}
	return nil
}

// Record is the persisted outcome of scoring one pair. (InvestorID,
// TargetID) is unique.
type Record struct {
	ID         int64      `json:"id"`
	InvestorID int64      `json:"investor_id"`
	TargetID   int64      `json:"target_id"`
	Total      int        `json:"total"`
	Dimensions Dimensions `json:"dimensions"`
	Status     string     `json:"status"`
	ComputedAt time.Time  `json:"computed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewRecord builds a pending record for a freshly scored pair.
func NewRecord(investorID, targetID int64, s Score) Record {
	return Record{
		InvestorID: investorID,
		TargetID:   targetID,
		Total:      s.Total,
		Dimensions: s.Dimensions,
		Status:     StatusPending,
		ComputedAt: s.ComputedAt,
	}
}

// Filter narrows ListMatches. Zero values match everything.
type Filter struct {
	InvestorID int64  `json:"investor_id,omitempty"`
	TargetID   int64  `json:"target_id,omitempty"`
	Status     string `json:"status,omitempty"`
	MinTotal   int    `json:"min_total,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}
