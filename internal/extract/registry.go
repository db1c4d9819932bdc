package extract

import (
	"strings"
	"sync"
)

// Matcher selects messages by sender address and, optionally, by exact
// subject.
type Matcher struct {
	Address string

	Subject string
	// SubjectGated requires Subject to match exactly.
	SubjectGated bool
}

func (m Matcher) matchesAddress(sender string) bool {
	return strings.EqualFold(strings.TrimSpace(sender), m.Address)
}

type registration struct {
	matcher  Matcher
	strategy Strategy
}

// Registry maps senders to strategies. Registrations are evaluated in
// the order they were added; the first full match wins.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register maps all mail from address to s.
func (r *Registry) Register(address string, s Strategy) {
	r.add(Matcher{Address: normalizeAddress(address)}, s)
}

// RegisterWithSubject maps mail from address to s only when its subject
// equals subject exactly.
func (r *Registry) RegisterWithSubject(address, subject string, s Strategy) {
	r.add(Matcher{Address: normalizeAddress(address), Subject: subject, SubjectGated: true}, s)
}

func (r *Registry) add(m Matcher, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registration{matcher: m, strategy: s})
}

// Lookup returns the strategy for sender and subject, or
// ErrStrategyNotFound / ErrUnexpectedSubject.
func (r *Registry) Lookup(sender, subject string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	err := ErrStrategyNotFound
	for _, e := range r.entries {
		if !e.matcher.matchesAddress(sender) {
			continue
		}
		if e.matcher.SubjectGated && e.matcher.Subject != subject {
			err = ErrUnexpectedSubject
			continue
		}
		return e.strategy, nil
	}
	return nil, err
}

// Resolve is Lookup without the reason: nil means the message is not
// handled.
func (r *Registry) Resolve(sender, subject string) Strategy {
	s, err := r.Lookup(sender, subject)
	if err != nil {
		return nil
	}
	return s
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
