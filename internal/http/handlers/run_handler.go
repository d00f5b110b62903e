package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"offerplacer/internal/domain"
	applog "offerplacer/internal/log"
	"offerplacer/internal/services"
	"offerplacer/internal/validate"
)

type RunHandler struct {
	Pipeline *services.Pipeline
}

// Start kicks off a publish run over the current batch.
func (h *RunHandler) Start(c *fiber.Ctx) error {
	run, err := h.Pipeline.Start()
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConcurrentRun):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, domain.ErrEmptyBatch):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		default:
			applog.Error(c, "run.start", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not start run"})
		}
	}
	applog.Audit(c, "run.start", map[string]any{"run_id": run.ID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"run_id": run.ID, "state": run.State()})
}

// Confirm signals that manual marketplace login is done.
func (h *RunHandler) Confirm(c *fiber.Ctx) error {
	id, ok := validate.RunID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}
	if err := h.Pipeline.Confirm(id); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	applog.Audit(c, "run.confirm", map[string]any{"run_id": id})
	return c.JSON(fiber.Map{"ok": true})
}

// Cancel stops a run at the login gate, or between offers while posting.
func (h *RunHandler) Cancel(c *fiber.Ctx) error {
	id, ok := validate.RunID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}
	if err := h.Pipeline.Cancel(id); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	applog.Audit(c, "run.cancel", map[string]any{"run_id": id})
	return c.JSON(fiber.Map{"ok": true})
}

// Report returns the live or terminal report for a run.
func (h *RunHandler) Report(c *fiber.Ctx) error {
	id, ok := validate.RunID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}
	run, err := h.Pipeline.Get(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(run.Report())
}
