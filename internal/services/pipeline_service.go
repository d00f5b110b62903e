package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"offerplacer/internal/archive"
	"offerplacer/internal/domain"
	"offerplacer/internal/gateway"
	applog "offerplacer/internal/log"
)

// Run states. Idle is the system state between runs: no active Run exists.
const (
	StateSessionStarting = "session_starting"
	StateAwaitingLogin   = "awaiting_login"
	StatePosting         = "posting"
	StateCompleted       = "completed"
	StateAborted         = "aborted"
)

// Run is one publish attempt over the current batch. It lives for the
// duration of the run goroutine and stays queryable afterwards.
type Run struct {
	ID string

	mu          sync.Mutex
	state       string
	outcomes    []domain.PostingOutcome
	archivePath string
	runErr      error

	confirm     chan struct{}
	cancel      chan struct{}
	done        chan struct{}
	confirmOnce sync.Once
	cancelOnce  sync.Once
}

func newRun() *Run {
	return &Run{
		ID:      uuid.NewString(),
		state:   StateSessionStarting,
		confirm: make(chan struct{}),
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (r *Run) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s string) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	applog.Run("run.state", r.ID, map[string]any{"state": s})
}

func (r *Run) terminal() bool {
	s := r.State()
	return s == StateCompleted || s == StateAborted
}

func (r *Run) addOutcome(name, status, detail string) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, domain.PostingOutcome{OfferName: name, Status: status, Detail: detail})
	r.mu.Unlock()
}

func (r *Run) finish(state string, runErr error) {
	r.mu.Lock()
	r.state = state
	r.runErr = runErr
	r.mu.Unlock()
	if runErr != nil {
		applog.RunError("run.finish", r.ID, runErr, map[string]any{"state": state})
	} else {
		applog.Run("run.finish", r.ID, map[string]any{"state": state})
	}
	close(r.done)
}

// Wait blocks until the run reaches a terminal state.
func (r *Run) Wait() { <-r.done }

// Report snapshots the run for the operator.
func (r *Run) Report() domain.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := domain.RunReport{
		RunID:       r.ID,
		State:       r.state,
		Outcomes:    append([]domain.PostingOutcome(nil), r.outcomes...),
		ArchivePath: r.archivePath,
	}
	if r.runErr != nil {
		rep.Err = r.runErr.Error()
	}
	return rep
}

// Pipeline drives publish runs: one at a time, one browser-like session per
// run, per-offer failure isolation, archive-then-clear on completion.
type Pipeline struct {
	Batch      *BatchService
	Archive    *archive.Archiver
	Gateway    gateway.Gateway
	ProfileDir string

	mu     sync.Mutex
	active *Run
	runs   map[string]*Run
}

func NewPipeline(batch *BatchService, arch *archive.Archiver, gw gateway.Gateway, profileDir string) *Pipeline {
	return &Pipeline{
		Batch:      batch,
		Archive:    arch,
		Gateway:    gw,
		ProfileDir: profileDir,
		runs:       map[string]*Run{},
	}
}

// Start begins a publish run. Fails with ErrConcurrentRun while another run
// is in flight and with ErrEmptyBatch when there is nothing to post — no
// session is opened for an empty batch.
func (p *Pipeline) Start() (*Run, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil && !p.active.terminal() {
		return nil, domain.ErrConcurrentRun
	}
	n, err := p.Batch.Count()
	if err != nil {
		return nil, &domain.PersistenceError{Op: "count batch", Err: err}
	}
	if n == 0 {
		return nil, domain.ErrEmptyBatch
	}

	r := newRun()
	p.runs[r.ID] = r
	p.active = r
	applog.Run("run.start", r.ID, map[string]any{"offers": n})

	go p.execute(r)
	return r, nil
}

// Get returns a run by handle, live or terminal.
func (p *Pipeline) Get(id string) (*Run, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return r, nil
}

// Confirm signals that the operator finished the manual marketplace login.
// Valid only while the run is awaiting it.
func (p *Pipeline) Confirm(id string) error {
	r, err := p.Get(id)
	if err != nil {
		return err
	}
	if s := r.State(); s != StateAwaitingLogin {
		return fmt.Errorf("run is %s, not awaiting login", s)
	}
	r.confirmOnce.Do(func() { close(r.confirm) })
	return nil
}

// Cancel requests the run to stop. At the login gate it closes the session
// with no outcomes recorded; during posting it takes effect between offers,
// never mid-submission.
func (p *Pipeline) Cancel(id string) error {
	r, err := p.Get(id)
	if err != nil {
		return err
	}
	if r.terminal() {
		return fmt.Errorf("run is already %s", r.State())
	}
	r.cancelOnce.Do(func() { close(r.cancel) })
	return nil
}

func (p *Pipeline) execute(r *Run) {
	ctx := context.Background()

	sess, err := p.Gateway.Open(ctx, p.ProfileDir)
	if err != nil {
		r.finish(StateAborted, &domain.SessionError{Op: "open", Err: err})
		return
	}

	r.setState(StateAwaitingLogin)
	select {
	case <-r.confirm:
	case <-r.cancel:
		_ = sess.Close()
		r.finish(StateAborted, nil)
		return
	}

	r.setState(StatePosting)
	if err := p.Batch.BeginRun(); err != nil {
		_ = sess.Close()
		r.finish(StateAborted, err)
		return
	}
	defer p.Batch.EndRun()

	offers, err := p.Batch.List()
	if err != nil {
		_ = sess.Close()
		r.finish(StateAborted, &domain.PersistenceError{Op: "load batch", Err: err})
		return
	}

	var sessionDead, cancelled bool
	for _, offer := range offers {
		if !cancelled {
			select {
			case <-r.cancel:
				cancelled = true
			default:
			}
		}
		switch {
		case sessionDead:
			r.addOutcome(offer.Name, domain.StatusSkipped, "session lost; not attempted")
			continue
		case cancelled:
			r.addOutcome(offer.Name, domain.StatusSkipped, "cancelled by operator")
			continue
		}

		conf, err := sess.Submit(ctx, offer)
		if err != nil {
			if errors.Is(err, gateway.ErrSessionLost) {
				// The session itself is gone; remaining offers are skipped
				// but the run still completes so posted offers stay visible.
				sessionDead = true
				r.addOutcome(offer.Name, domain.StatusSkipped, err.Error())
				applog.RunError("run.session_lost", r.ID, err, map[string]any{"offer": offer.Name})
				continue
			}
			subErr := &domain.SubmissionError{OfferName: offer.Name, Err: err}
			r.addOutcome(offer.Name, domain.StatusFailed, subErr.Error())
			applog.RunError("run.offer_failed", r.ID, subErr, map[string]any{"offer": offer.Name})
			continue
		}
		r.addOutcome(offer.Name, domain.StatusPosted, conf.Message)
	}
	_ = sess.Close()

	// Completed: archive, then (and only then) clear the live batch.
	handle, err := p.Archive.Archive(offers)
	if err != nil {
		r.finish(StateCompleted, err)
		return
	}
	r.mu.Lock()
	r.archivePath = handle.Path
	r.mu.Unlock()

	if err := p.Batch.Clear(); err != nil {
		r.finish(StateCompleted, err)
		return
	}
	r.finish(StateCompleted, nil)
}
