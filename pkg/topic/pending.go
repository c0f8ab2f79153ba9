package topic

import "github.com/smq-protocol/smq-go/pkg/wire"

// Key identifies an outstanding request: the request type and the name.
// CREATE and SUBSCRIBE for the same name are tracked separately.
type Key struct {
	Kind wire.MessageType
	Name string
}

// Continuation resumes a caller once its request is acknowledged. It is
// invoked with the client lock held and may return a follow-up to run
// after the lock is released.
type Continuation func(accepted bool, id uint32) (after func())

// Pending tracks outstanding requests and their waiters.
type Pending struct {
	waiters map[Key][]Continuation
}

// NewPending creates an empty tracker.
func NewPending() *Pending {
	return &Pending{waiters: make(map[Key][]Continuation)}
}

// RequestOrJoin appends c to the waiters of key. It returns true if a
// request for key is already in flight; otherwise the caller must send it.
func (p *Pending) RequestOrJoin(key Key, c Continuation) (inFlight bool) {
	list, inFlight := p.waiters[key]
	p.waiters[key] = append(list, c)
	return inFlight
}

// Resolve removes key and returns its waiters in registration order.
func (p *Pending) Resolve(key Key) []Continuation {
	list := p.waiters[key]
	delete(p.waiters, key)
	return list
}

// InFlight reports whether a request for key is outstanding.
func (p *Pending) InFlight(key Key) bool {
	_, ok := p.waiters[key]
	return ok
}

// Len returns the number of outstanding requests.
func (p *Pending) Len() int {
	return len(p.waiters)
}

// Reset drops every outstanding request without invoking waiters.
func (p *Pending) Reset() {
	p.waiters = make(map[Key][]Continuation)
}
