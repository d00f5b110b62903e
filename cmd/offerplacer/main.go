package main

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"offerplacer/internal/config"
	"offerplacer/internal/gateway"
	"offerplacer/internal/http/handlers"
	applog "offerplacer/internal/log"
	"offerplacer/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	gw := gateway.NewMarketplace(cfg.MarketplaceURL)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "something went wrong, please try again",
			})
		},
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	// ---------- App handlers ----------
	deps := handlers.NewDeps(db, cfg, gw)
	operator := handlers.RequireOperator(handlers.OperatorKeyHash(cfg.OperatorKey))

	api := app.Group("/api/v1")
	api.Get("/offers", deps.OfferHandler.List)
	api.Post("/offers", operator, deps.OfferHandler.Insert)
	api.Post("/batch/new", operator, deps.OfferHandler.NewBatch)

	api.Post("/runs", operator, deps.RunHandler.Start)
	api.Post("/runs/:id/confirm", operator, deps.RunHandler.Confirm)
	api.Post("/runs/:id/cancel", operator, deps.RunHandler.Cancel)
	api.Get("/runs/:id", deps.RunHandler.Report)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{"error": "not found"})
	})

	applog.Info(nil, "server.start", map[string]any{
		"port":     cfg.Port,
		"db":       cfg.DBDSN,
		"archives": cfg.ArchiveDir,
		"site":     cfg.MarketplaceURL,
	})
	log.Fatal(app.Listen(":" + cfg.Port))
}
