package repos

import (
	"github.com/jmoiron/sqlx"

	"offerplacer/internal/domain"
)

type OfferRepo struct{ db *sqlx.DB }

func NewOfferRepo(db *sqlx.DB) *OfferRepo { return &OfferRepo{db: db} }

// Get returns the stored row for a merge key.
// Returns sql.ErrNoRows when the batch has no such offer.
func (r *OfferRepo) Get(nameKey string) (domain.Offer, error) {
	var o domain.Offer
	err := r.db.Get(&o, `
		SELECT name, title, quantity, price, COALESCE(description,'') AS description,
		       COALESCE(image_url,'') AS image_url, created_at
		FROM offers
		WHERE name_key = ?
	`, nameKey)
	return o, err
}

// Upsert applies the additive merge in one statement: a new name inserts a
// row, an existing one gains quantity only and keeps its stored name, title,
// price and description.
func (r *OfferRepo) Upsert(o domain.Offer) error {
	_, err := r.db.Exec(`
		INSERT INTO offers(name_key, name, title, quantity, price, description, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_key) DO UPDATE SET quantity = quantity + excluded.quantity
	`, domain.NameKey(o.Name), o.Name, o.Title, o.Quantity, o.Price, o.Description, o.ImageURL)
	return err
}

// ListAll returns the whole batch in insertion order.
func (r *OfferRepo) ListAll() ([]domain.Offer, error) {
	var out []domain.Offer
	err := r.db.Select(&out, `
		SELECT name, title, quantity, price, COALESCE(description,'') AS description,
		       COALESCE(image_url,'') AS image_url, created_at
		FROM offers
		ORDER BY rowid
	`)
	return out, err
}

func (r *OfferRepo) Count() (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM offers`)
	return n, err
}

// Clear empties the live batch. Callers must archive first.
func (r *OfferRepo) Clear() error {
	_, err := r.db.Exec(`DELETE FROM offers`)
	return err
}
