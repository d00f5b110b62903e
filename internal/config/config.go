package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	Port           string
	DBDSN          string
	ArchiveDir     string
	MarketplaceURL string
	ProfileDir     string
	DefaultDesc    string
	MaxQty         int
	OperatorKey    string
	LogFile        string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "offerplacer.db"
	} // sqlite file in project root
	archiveDir := os.Getenv("ARCHIVE_DIR")
	if archiveDir == "" {
		archiveDir = "./data/archives"
	}
	site := os.Getenv("MARKETPLACE_URL")
	if site == "" {
		site = "https://www.eldorado.gg/"
	}
	profile := os.Getenv("PROFILE_DIR")
	if profile == "" {
		profile = "./data/profile"
	}
	defaultDesc := os.Getenv("DEFAULT_DESCRIPTION")

	maxQty := 500
	if raw := os.Getenv("MAX_QTY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxQty = n
		} else {
			log.Printf("[warn] ignoring bad MAX_QTY=%q", raw)
		}
	}

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "./offerplacer.log" // default log sink in project root
	}

	cfg := Config{
		Port:           port,
		DBDSN:          dsn,
		ArchiveDir:     archiveDir,
		MarketplaceURL: site,
		ProfileDir:     profile,
		DefaultDesc:    defaultDesc,
		MaxQty:         maxQty,
		OperatorKey:    os.Getenv("OPERATOR_KEY"),
		LogFile:        logFile,
	}
	log.Printf("[config] PORT=%s DB_DSN=%s ARCHIVE_DIR=%s MARKETPLACE_URL=%s MAX_QTY=%d",
		cfg.Port, cfg.DBDSN, cfg.ArchiveDir, cfg.MarketplaceURL, cfg.MaxQty)
	return cfg
}
