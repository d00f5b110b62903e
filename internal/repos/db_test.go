package repos_test

import (
	"os"
	"path/filepath"
	"testing"

	"offerplacer/internal/repos"
)

func TestOpenDBMissingFileStartsEmpty(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "offers.db")

	db, err := repos.OpenDB(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	n, err := repos.NewOfferRepo(db).Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected an empty batch, got %d rows", n)
	}
}

func TestOpenDBCorruptFileStartsEmpty(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "offers.db")
	if err := os.WriteFile(dsn, []byte("definitely not a database"), 0644); err != nil {
		t.Fatal(err)
	}

	db, err := repos.OpenDB(dsn)
	if err != nil {
		t.Fatalf("open over a damaged file: %v", err)
	}
	defer db.Close()

	n, err := repos.NewOfferRepo(db).Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected an empty batch, got %d rows", n)
	}

	// The damaged file is preserved next to the fresh one, not destroyed.
	aside, err := filepath.Glob(dsn + ".corrupt-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(aside) != 1 {
		t.Fatalf("expected the damaged file set aside, found %v", aside)
	}
	body, err := os.ReadFile(aside[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "definitely not a database" {
		t.Fatalf("set-aside file was altered: %q", body)
	}
}
