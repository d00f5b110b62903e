package repos

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// OpenDB opens the batch database, creating the schema when missing. An
// unreadable file is not fatal: the damaged file is set aside and a fresh
// empty batch takes its place, so the tool always comes up.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := open(dsn)
	if err == nil {
		return db, nil
	}
	if !recoverable(dsn) {
		return nil, err
	}
	aside := fmt.Sprintf("%s.corrupt-%s", dsn, time.Now().UTC().Format("20060102_150405"))
	if mvErr := os.Rename(dsn, aside); mvErr != nil {
		return nil, err
	}
	log.Printf("[warn] unreadable database %s set aside as %s: %v", dsn, aside, err)
	return open(dsn)
}

func open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Single connection: avoids SQLITE_BUSY under the run goroutine and
	// keeps :memory: databases (one per connection) coherent in tests.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// recoverable reports whether the DSN names an on-disk file we can move
// aside and recreate.
func recoverable(dsn string) bool {
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return false
	}
	_, err := os.Stat(dsn)
	return err == nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Live batch: one row per unique offer name. name_key is the offer name
-- lowercased with collapsed whitespace; insertion order = rowid order.
CREATE TABLE IF NOT EXISTS offers(
  name_key    TEXT PRIMARY KEY,
  name        TEXT NOT NULL,
  title       TEXT NOT NULL,
  quantity    INTEGER NOT NULL CHECK (quantity >= 1),
  price       NUMERIC NOT NULL CHECK (price > 0),
  description TEXT,
  image_url   TEXT,
  created_at  TEXT DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := db.Exec(schema)
	return err
}
