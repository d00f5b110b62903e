package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"offerplacer/internal/domain"
	applog "offerplacer/internal/log"
	"offerplacer/internal/services"
)

type OfferHandler struct {
	Batch *services.BatchService
}

// Insert adds an offer to the current batch, merging by normalized name.
func (h *OfferHandler) Insert(c *fiber.Ctx) error {
	in := services.InsertInput{
		Name:        c.FormValue("name"),
		Title:       c.FormValue("title"),
		Quantity:    c.FormValue("quantity"),
		Price:       c.FormValue("price"),
		Description: c.FormValue("description"),
		ImageURL:    c.FormValue("image_url"),
	}

	res, err := h.Batch.Insert(in)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, domain.ErrBatchLocked):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			applog.Error(c, "offer.insert", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not store offer"})
		}
	}

	if res.Merged {
		applog.Audit(c, "offer.merge", map[string]any{
			"name": res.Offer.Name, "quantity": res.Offer.Quantity,
			"price_diverged": res.PriceDiverged, "description_diverged": res.DescDiverged,
		})
	} else {
		applog.Audit(c, "offer.insert", map[string]any{"name": res.Offer.Name, "quantity": res.Offer.Quantity})
	}
	return c.JSON(res)
}

// List returns the live batch in insertion order.
func (h *OfferHandler) List(c *fiber.Ctx) error {
	offers, err := h.Batch.List()
	if err != nil {
		applog.Error(c, "offer.list", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load batch"})
	}
	return c.JSON(fiber.Map{"offers": offers, "count": len(offers)})
}

// NewBatch archives the current batch and starts an empty one.
func (h *OfferHandler) NewBatch(c *fiber.Ctx) error {
	path, err := h.Batch.StartNew()
	if err != nil {
		if errors.Is(err, domain.ErrBatchLocked) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		applog.Error(c, "batch.new", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	applog.Audit(c, "batch.new", map[string]any{"archive": path})
	return c.JSON(fiber.Map{"archive": path})
}
