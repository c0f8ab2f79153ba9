package topic

import (
	"testing"

	"github.com/smq-protocol/smq-go/pkg/wire"
)

func TestPendingCollapsesRequests(t *testing.T) {
	p := NewPending()
	key := Key{Kind: wire.TypeCreate, Name: "orders"}

	var order []int
	waiter := func(n int) Continuation {
		return func(accepted bool, id uint32) func() {
			if !accepted || id != 501 {
				t.Errorf("waiter %d: got (%v, %d)", n, accepted, id)
			}
			order = append(order, n)
			return nil
		}
	}

	if p.RequestOrJoin(key, waiter(1)) {
		t.Error("first caller must send the request")
	}
	for n := 2; n <= 4; n++ {
		if !p.RequestOrJoin(key, waiter(n)) {
			t.Errorf("caller %d should join the in-flight request", n)
		}
	}
	if p.Len() != 1 {
		t.Errorf("Len: got %d, want 1", p.Len())
	}

	for _, c := range p.Resolve(key) {
		c(true, 501)
	}
	if len(order) != 4 || order[0] != 1 || order[3] != 4 {
		t.Errorf("waiters ran as %v, want [1 2 3 4]", order)
	}
	if p.InFlight(key) {
		t.Error("key should be cleared after Resolve")
	}
	if p.RequestOrJoin(key, waiter(5)) {
		t.Error("after resolution a new request is needed")
	}
}

func TestPendingKindsAreIndependent(t *testing.T) {
	p := NewPending()
	noop := func(bool, uint32) func() { return nil }

	p.RequestOrJoin(Key{Kind: wire.TypeCreate, Name: "x"}, noop)
	if p.RequestOrJoin(Key{Kind: wire.TypeSubscribe, Name: "x"}, noop) {
		t.Error("SUBSCRIBE must not join a pending CREATE")
	}
	if p.RequestOrJoin(Key{Kind: wire.TypeCreateSub, Name: "x"}, noop) {
		t.Error("CREATESUB must not join a pending CREATE")
	}
}

func TestPendingResetDropsWaiters(t *testing.T) {
	p := NewPending()
	called := false
	p.RequestOrJoin(Key{Kind: wire.TypeCreate, Name: "a"}, func(bool, uint32) func() {
		called = true
		return nil
	})
	p.Reset()

	if got := p.Resolve(Key{Kind: wire.TypeCreate, Name: "a"}); len(got) != 0 {
		t.Errorf("got %d waiters after Reset", len(got))
	}
	if called {
		t.Error("Reset must not invoke waiters")
	}
}
