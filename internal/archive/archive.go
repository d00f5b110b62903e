// Package archive rotates finished batches into timestamped CSV snapshots.
// Archives are append-only: one file per archive event, named so lexical and
// chronological order coincide, never rewritten afterwards.
package archive

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"offerplacer/internal/domain"
)

var columns = []string{"name", "title", "quantity", "price", "description", "image_url", "archived_at"}

// Handle points at one written archive file.
type Handle struct {
	Path      string
	CreatedAt time.Time
}

type Archiver struct {
	dir string

	mu        sync.Mutex
	lastStamp string
	seq       int

	now func() time.Time // test hook
}

func New(dir string) *Archiver {
	return &Archiver{dir: dir, now: time.Now}
}

// Archive writes an immutable snapshot of the given batch. A counter suffix
// keeps names unique when two archives land in the same second.
func (a *Archiver) Archive(offers []domain.Offer) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.now()
	stamp := ts.Format("20060102_150405")
	if stamp == a.lastStamp {
		a.seq++
	} else {
		a.lastStamp = stamp
		a.seq = 0
	}
	name := "batch_" + stamp
	if a.seq > 0 {
		name = fmt.Sprintf("%s_%03d", name, a.seq)
	}
	path := filepath.Join(a.dir, name+".csv")

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return Handle{}, &domain.PersistenceError{Op: "archive", Err: err}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Handle{}, &domain.PersistenceError{Op: "archive", Err: err}
	}
	defer f.Close()

	archivedAt := ts.Format("2006-01-02 15:04:05")
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return Handle{}, &domain.PersistenceError{Op: "archive", Err: err}
	}
	for _, o := range offers {
		row := []string{
			o.Name,
			o.Title,
			strconv.Itoa(o.Quantity),
			fmt.Sprintf("%.2f", o.Price),
			o.Description,
			o.ImageURL,
			archivedAt,
		}
		if err := w.Write(row); err != nil {
			return Handle{}, &domain.PersistenceError{Op: "archive", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Handle{}, &domain.PersistenceError{Op: "archive", Err: err}
	}
	if err := f.Sync(); err != nil {
		return Handle{}, &domain.PersistenceError{Op: "archive", Err: err}
	}

	return Handle{Path: path, CreatedAt: ts}, nil
}
