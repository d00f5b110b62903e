package handlers

import (
	"github.com/jmoiron/sqlx"

	"offerplacer/internal/archive"
	"offerplacer/internal/config"
	"offerplacer/internal/gateway"
	"offerplacer/internal/repos"
	"offerplacer/internal/services"
)

type Deps struct {
	OfferHandler *OfferHandler
	RunHandler   *RunHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, gw gateway.Gateway) *Deps {
	offerRepo := repos.NewOfferRepo(db)
	archiver := archive.New(cfg.ArchiveDir)

	batchSvc := services.NewBatchService(offerRepo, archiver, cfg.DefaultDesc, cfg.MaxQty)
	pipeline := services.NewPipeline(batchSvc, archiver, gw, cfg.ProfileDir)

	return &Deps{
		OfferHandler: &OfferHandler{Batch: batchSvc},
		RunHandler:   &RunHandler{Pipeline: pipeline},
	}
}
