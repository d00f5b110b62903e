package domain

import "strings"

// Offer is one sellable listing in the current batch.
type Offer struct {
	Name        string  `db:"name" json:"name"`
	Title       string  `db:"title" json:"title"`
	Quantity    int     `db:"quantity" json:"quantity"`
	Price       float64 `db:"price" json:"price"`
	Description string  `db:"description" json:"description"`
	ImageURL    string  `db:"image_url" json:"image_url,omitempty"`
	CreatedAt   string  `db:"created_at" json:"created_at,omitempty"`
}

// NameKey is the merge key: offers whose names differ only in case or
// whitespace are the same row within a batch.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Outcome statuses for one offer in one publish run.
const (
	StatusPosted  = "posted"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// PostingOutcome is the per-offer result of one publish run.
// Detail is required whenever Status is not "posted".
type PostingOutcome struct {
	OfferName string `json:"offer_name"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

// RunReport is a snapshot of one publish run, live or terminal.
type RunReport struct {
	RunID       string           `json:"run_id"`
	State       string           `json:"state"`
	Outcomes    []PostingOutcome `json:"outcomes"`
	ArchivePath string           `json:"archive_path,omitempty"`
	Err         string           `json:"error,omitempty"`
}
