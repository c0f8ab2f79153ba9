package subscription

// Observers maps topic or ephemeral IDs to change handlers.
type Observers[H any] struct {
	byID map[uint32][]H
}

// NewObservers creates an empty table.
func NewObservers[H any]() *Observers[H] {
	return &Observers[H]{byID: make(map[uint32][]H)}
}

// Add registers a change handler for id.
func (o *Observers[H]) Add(id uint32, h H) {
	o.byID[id] = append(o.byID[id], h)
}

// Remove drops every handler for id.
func (o *Observers[H]) Remove(id uint32) bool {
	_, ok := o.byID[id]
	delete(o.byID, id)
	return ok
}

// Collect returns the handlers for id in registration order. When
// oneShot is set the entry is removed, so a later CHANGE for the same
// id finds nothing.
func (o *Observers[H]) Collect(id uint32, oneShot bool) []H {
	list := clone(o.byID[id])
	if oneShot {
		delete(o.byID, id)
	}
	return list
}

// Len returns the number of observed IDs.
func (o *Observers[H]) Len() int {
	return len(o.byID)
}

// Reset drops every handler.
func (o *Observers[H]) Reset() {
	o.byID = make(map[uint32][]H)
}
