package services

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	"offerplacer/internal/archive"
	"offerplacer/internal/domain"
	"offerplacer/internal/repos"
	"offerplacer/internal/validate"
)

// InsertInput carries raw operator input for one offer. Quantity and Price
// arrive as strings straight from the form.
type InsertInput struct {
	Name        string
	Title       string
	Quantity    string
	Price       string
	Description string
	ImageURL    string
}

// InsertResult is the post-merge state of the stored row. The divergence
// flags surface price/description conflicts on a merge instead of silently
// discarding the incoming values.
type InsertResult struct {
	Offer         domain.Offer `json:"offer"`
	Merged        bool         `json:"merged"`
	PriceDiverged bool         `json:"price_diverged,omitempty"`
	DescDiverged  bool         `json:"description_diverged,omitempty"`
}

// BatchService owns the live batch: validation, the name-based additive
// merge, and the run-in-progress guard that freezes the batch while the
// pipeline is posting.
type BatchService struct {
	Offers      *repos.OfferRepo
	Archive     *archive.Archiver
	DefaultDesc string
	MaxQty      int

	posting atomic.Bool
}

func NewBatchService(offers *repos.OfferRepo, arch *archive.Archiver, defaultDesc string, maxQty int) *BatchService {
	return &BatchService{Offers: offers, Archive: arch, DefaultDesc: defaultDesc, MaxQty: maxQty}
}

// Insert validates the input and applies the merge rule: an offer whose
// normalized name already exists gains quantity only; title, price and
// description keep their prior values. Returns the resulting stored row.
func (s *BatchService) Insert(in InsertInput) (InsertResult, error) {
	if s.posting.Load() {
		return InsertResult{}, domain.ErrBatchLocked
	}

	name, ok := validate.Name(in.Name)
	if !ok {
		return InsertResult{}, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	qty, ok := validate.Qty(in.Quantity, s.MaxQty)
	if !ok {
		return InsertResult{}, &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be a positive integer up to %d", s.MaxQty)}
	}
	price, ok := validate.Price(in.Price)
	if !ok {
		return InsertResult{}, &domain.ValidationError{Field: "price", Reason: "must be a positive amount with at most two decimals"}
	}

	offer := domain.Offer{
		Name:        name,
		Title:       in.Title,
		Quantity:    qty,
		Price:       price,
		Description: in.Description,
		ImageURL:    in.ImageURL,
	}
	if offer.Title == "" {
		offer.Title = name
	}
	// Default description is substituted at insertion time, not at posting.
	if offer.Description == "" {
		offer.Description = s.DefaultDesc
	}

	key := domain.NameKey(name)
	existing, err := s.Offers.Get(key)
	merged := err == nil
	if err != nil && err != sql.ErrNoRows {
		return InsertResult{}, &domain.PersistenceError{Op: "lookup offer", Err: err}
	}

	// The upsert is atomic; the pre-read only feeds the divergence flags.
	if err := s.Offers.Upsert(offer); err != nil {
		return InsertResult{}, &domain.PersistenceError{Op: "store offer", Err: err}
	}
	stored, err := s.Offers.Get(key)
	if err != nil {
		return InsertResult{}, &domain.PersistenceError{Op: "read back offer", Err: err}
	}
	if !merged {
		return InsertResult{Offer: stored}, nil
	}
	return InsertResult{
		Offer:         stored,
		Merged:        true,
		PriceDiverged: price != existing.Price,
		DescDiverged:  in.Description != "" && in.Description != existing.Description,
	}, nil
}

// List returns the current batch in insertion order. Reads stay allowed
// while a run is awaiting login or posting.
func (s *BatchService) List() ([]domain.Offer, error) {
	return s.Offers.ListAll()
}

func (s *BatchService) Count() (int, error) {
	return s.Offers.Count()
}

// Clear empties the live batch. Only the pipeline (after a successful
// archive) and StartNew call this; archiving first is enforced by ordering.
func (s *BatchService) Clear() error {
	if err := s.Offers.Clear(); err != nil {
		return &domain.PersistenceError{Op: "clear batch", Err: err}
	}
	return nil
}

// StartNew rotates the current batch into the archive and empties it, the
// start of a fresh authoring session. A non-empty batch is never silently
// overwritten. No-op on an empty batch.
func (s *BatchService) StartNew() (string, error) {
	if s.posting.Load() {
		return "", domain.ErrBatchLocked
	}
	offers, err := s.Offers.ListAll()
	if err != nil {
		return "", &domain.PersistenceError{Op: "load batch", Err: err}
	}
	if len(offers) == 0 {
		return "", nil
	}
	handle, err := s.Archive.Archive(offers)
	if err != nil {
		return "", err
	}
	if err := s.Clear(); err != nil {
		return handle.Path, err
	}
	return handle.Path, nil
}

// BeginRun engages the run-in-progress guard. The pipeline holds it from
// Posting entry until the run terminates so the batch cannot change mid-run.
func (s *BatchService) BeginRun() error {
	if !s.posting.CompareAndSwap(false, true) {
		return domain.ErrBatchLocked
	}
	return nil
}

func (s *BatchService) EndRun() {
	s.posting.Store(false)
}
