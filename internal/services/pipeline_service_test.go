package services_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"offerplacer/internal/archive"
	"offerplacer/internal/domain"
	"offerplacer/internal/gateway"
	"offerplacer/internal/repos"
	"offerplacer/internal/services"
)

func newPipeline(t *testing.T, mock *gateway.Mock, names ...string) (*services.Pipeline, *services.BatchService) {
	t.Helper()
	db := memdb(t)
	arch := archive.New(filepath.Join(t.TempDir(), "archives"))
	batch := services.NewBatchService(repos.NewOfferRepo(db), arch, "", 500)
	for _, name := range names {
		if _, err := batch.Insert(services.InsertInput{Name: name, Quantity: "1", Price: "10.00"}); err != nil {
			t.Fatal(err)
		}
	}
	return services.NewPipeline(batch, arch, mock, t.TempDir()), batch
}

func waitState(t *testing.T, run *services.Run, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if run.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run never reached state %q, stuck at %q", want, run.State())
}

func confirmWhenReady(t *testing.T, p *services.Pipeline, run *services.Run) {
	t.Helper()
	waitState(t, run, services.StateAwaitingLogin)
	if err := p.Confirm(run.ID); err != nil {
		t.Fatal(err)
	}
}

func TestRunAllOffersPosted(t *testing.T) {
	mock := &gateway.Mock{}
	p, batch := newPipeline(t, mock, "a", "b", "c")

	run, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	confirmWhenReady(t, p, run)
	run.Wait()

	rep := run.Report()
	if rep.State != services.StateCompleted || rep.Err != "" {
		t.Fatalf("want clean completion, got %+v", rep)
	}
	if len(rep.Outcomes) != 3 {
		t.Fatalf("want 3 outcomes, got %d", len(rep.Outcomes))
	}
	for _, o := range rep.Outcomes {
		if o.Status != domain.StatusPosted {
			t.Fatalf("want all posted, got %+v", o)
		}
	}
	if rep.ArchivePath == "" {
		t.Fatal("completed run must record its archive")
	}
	if _, err := os.Stat(rep.ArchivePath); err != nil {
		t.Fatalf("archive file: %v", err)
	}
	n, err := batch.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("batch must be cleared after archive, got %d rows", n)
	}
	if !mock.Closed() {
		t.Fatal("session must be closed after the run")
	}
}

func TestRunContinuesPastFailedOffer(t *testing.T) {
	mock := &gateway.Mock{FailNames: map[string]string{"b": "price too low"}}
	p, _ := newPipeline(t, mock, "a", "b", "c")

	run, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	confirmWhenReady(t, p, run)
	run.Wait()

	rep := run.Report()
	if rep.State != services.StateCompleted {
		t.Fatalf("want completed, got %q", rep.State)
	}
	want := []string{domain.StatusPosted, domain.StatusFailed, domain.StatusPosted}
	for i, o := range rep.Outcomes {
		if o.Status != want[i] {
			t.Fatalf("outcome %d: want %s, got %+v", i, want[i], o)
		}
	}
	if rep.Outcomes[1].Detail == "" {
		t.Fatal("failed outcome must carry a detail string")
	}
}

func TestRunSessionLostSkipsRemaining(t *testing.T) {
	mock := &gateway.Mock{DieAfter: 1}
	p, batch := newPipeline(t, mock, "a", "b", "c")

	run, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	confirmWhenReady(t, p, run)
	run.Wait()

	rep := run.Report()
	if rep.State != services.StateCompleted {
		t.Fatalf("session loss must still complete with a partial report, got %q", rep.State)
	}
	if rep.Outcomes[0].Status != domain.StatusPosted {
		t.Fatalf("offer #1 stays posted, got %+v", rep.Outcomes[0])
	}
	for _, o := range rep.Outcomes[1:] {
		if o.Status != domain.StatusSkipped || o.Detail == "" {
			t.Fatalf("remaining offers must be skipped with detail, got %+v", o)
		}
	}
	// Partial completion still archives and clears.
	n, _ := batch.Count()
	if n != 0 {
		t.Fatalf("batch must be cleared, got %d rows", n)
	}
}

func TestRunAbortsWhenSessionCannotOpen(t *testing.T) {
	mock := &gateway.Mock{OpenErr: errors.New("profile dir: no such file")}
	p, _ := newPipeline(t, mock, "a")

	run, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	run.Wait()

	rep := run.Report()
	if rep.State != services.StateAborted {
		t.Fatalf("want aborted, got %q", rep.State)
	}
	if len(rep.Outcomes) != 0 {
		t.Fatalf("no outcomes may be recorded before the session exists, got %+v", rep.Outcomes)
	}
	if !strings.Contains(rep.Err, "session open") {
		t.Fatalf("aborted run must report the session error, got %q", rep.Err)
	}
}

func TestArchiveFailureKeepsBatch(t *testing.T) {
	mock := &gateway.Mock{}
	db := memdb(t)

	// Point the archiver at a path whose parent is a regular file, so the
	// write must fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	arch := archive.New(filepath.Join(blocker, "archives"))

	batch := services.NewBatchService(repos.NewOfferRepo(db), arch, "", 500)
	for _, name := range []string{"a", "b"} {
		if _, err := batch.Insert(services.InsertInput{Name: name, Quantity: "1", Price: "10.00"}); err != nil {
			t.Fatal(err)
		}
	}
	p := services.NewPipeline(batch, arch, mock, t.TempDir())

	run, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	confirmWhenReady(t, p, run)
	run.Wait()

	rep := run.Report()
	if rep.State != services.StateCompleted {
		t.Fatalf("archive failure still completes the run, got %q", rep.State)
	}
	if rep.Err == "" {
		t.Fatal("run report must flag the persistence failure")
	}
	// Clear must never have been called: all offers stay live.
	n, err := batch.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("batch must survive an archive failure, got %d rows", n)
	}
}

func TestSecondRunRejectedWhileActive(t *testing.T) {
	mock := &gateway.Mock{}
	p, _ := newPipeline(t, mock, "a")

	run, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	waitState(t, run, services.StateAwaitingLogin)

	if _, err := p.Start(); !errors.Is(err, domain.ErrConcurrentRun) {
		t.Fatalf("want ErrConcurrentRun, got %v", err)
	}

	// The in-flight run is undisturbed and still finishes.
	if err := p.Confirm(run.ID); err != nil {
		t.Fatal(err)
	}
	run.Wait()
	if run.State() != services.StateCompleted {
		t.Fatalf("first run must complete, got %q", run.State())
	}

	// A fresh command can start another run once the first is terminal
	// (batch is empty now, so the precondition check fires instead).
	if _, err := p.Start(); !errors.Is(err, domain.ErrEmptyBatch) {
		t.Fatalf("want ErrEmptyBatch after cleared batch, got %v", err)
	}
}

func TestStartRejectsEmptyBatch(t *testing.T) {
	mock := &gateway.Mock{}
	p, _ := newPipeline(t, mock)

	if _, err := p.Start(); !errors.Is(err, domain.ErrEmptyBatch) {
		t.Fatalf("want ErrEmptyBatch, got %v", err)
	}
}

func TestCancelAtLoginGate(t *testing.T) {
	mock := &gateway.Mock{}
	p, batch := newPipeline(t, mock, "a", "b")

	run, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	waitState(t, run, services.StateAwaitingLogin)
	if err := p.Cancel(run.ID); err != nil {
		t.Fatal(err)
	}
	run.Wait()

	rep := run.Report()
	if rep.State != services.StateAborted || rep.Err != "" {
		t.Fatalf("cancelled run: want clean abort, got %+v", rep)
	}
	if len(rep.Outcomes) != 0 {
		t.Fatalf("cancel at login gate must record zero outcomes, got %+v", rep.Outcomes)
	}
	if !mock.Closed() {
		t.Fatal("session must be closed on cancel")
	}

	// The system is back to Idle: a fresh run can start.
	n, _ := batch.Count()
	if n != 2 {
		t.Fatalf("batch untouched by cancel, got %d rows", n)
	}
	run2, err := p.Start()
	if err != nil {
		t.Fatalf("fresh run after cancel: %v", err)
	}
	confirmWhenReady(t, p, run2)
	run2.Wait()
}

func TestCancelDuringPostingHonoredBetweenOffers(t *testing.T) {
	mock := &gateway.Mock{Started: make(chan struct{}), Release: make(chan struct{})}
	p, _ := newPipeline(t, mock, "a", "b", "c")

	run, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	confirmWhenReady(t, p, run)

	// Wait until the first submission is in flight, cancel, then let it
	// finish. The in-flight offer must complete, the rest must be skipped.
	<-mock.Started
	if err := p.Cancel(run.ID); err != nil {
		t.Fatal(err)
	}
	mock.Release <- struct{}{}
	run.Wait()

	rep := run.Report()
	if rep.State != services.StateCompleted {
		t.Fatalf("want completed with partial report, got %q", rep.State)
	}
	if rep.Outcomes[0].Status != domain.StatusPosted {
		t.Fatalf("in-flight offer must not be interrupted, got %+v", rep.Outcomes[0])
	}
	for _, o := range rep.Outcomes[1:] {
		if o.Status != domain.StatusSkipped {
			t.Fatalf("offers after cancel must be skipped, got %+v", o)
		}
	}
}
