package mailer

import (
	"context"
	"sync"
)

// Mock records delivered mail for tests. It validates like the real drivers and can be told
// to fail globally or for one recipient; failed sends are not recorded.
type Mock struct {
	mu     sync.Mutex
	sent   []Email
	err    error
	failTo map[string]error
}

// Fail makes every later Send return err; nil restores delivery.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailFor makes sends addressed to addr return err.
func (m *Mock) FailFor(addr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo == nil {
		m.failTo = make(map[string]error)
	}
	m.failTo[addr] = err
}

func (m *Mock) Send(_ context.Context, e Email) error {
	if err := e.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, rcpt := range e.AllRecipients() {
		if err := m.failTo[rcpt]; err != nil {
			return err
		}
	}
	m.sent = append(m.sent, e)
	return nil
}

// Sent returns a copy of the delivered mail in send order.
func (m *Mock) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}

// SentTo returns the delivered mail addressed to addr.
func (m *Mock) SentTo(addr string) []Email {
	var out []Email
	for _, e := range m.Sent() {
		for _, rcpt := range e.AllRecipients() {
			if rcpt == addr {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
