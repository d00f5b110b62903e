package gateway

import (
	"context"
	"fmt"
	"sync"

	"offerplacer/internal/domain"
)

// Mock is an in-memory gateway for tests and dry runs. Failures can be
// scripted per offer name; DieAfter kills the session after that many
// submissions to exercise mid-run session loss.
type Mock struct {
	mu        sync.Mutex
	OpenErr   error
	FailNames map[string]string // offer name -> rejection detail
	DieAfter  int               // 0 = never
	Started   chan struct{}     // when set, Submit signals entry before blocking
	Release   chan struct{}     // when set, each Submit waits for one send
	Submitted []string
	closed    bool
}

func (m *Mock) Open(_ context.Context, _ string) (Session, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return &mockSession{m: m}, nil
}

// Closed reports whether the last opened session was closed.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockSession struct {
	m *Mock
}

func (s *mockSession) Submit(_ context.Context, offer domain.Offer) (Confirmation, error) {
	m := s.m
	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Release != nil {
		<-m.Release
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DieAfter > 0 && len(m.Submitted) >= m.DieAfter {
		return Confirmation{}, fmt.Errorf("%w: connection reset", ErrSessionLost)
	}
	if detail, ok := m.FailNames[offer.Name]; ok {
		return Confirmation{}, fmt.Errorf("form rejected: %s", detail)
	}
	m.Submitted = append(m.Submitted, offer.Name)
	return Confirmation{OfferID: fmt.Sprintf("offer-%d", len(m.Submitted)), Message: "offer placed"}, nil
}

func (s *mockSession) Close() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.closed = true
	return nil
}
