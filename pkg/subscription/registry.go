package subscription

// Registry maps topic IDs to ordered handler lists, with an optional
// per-subtopic layer.
type Registry[H any] struct {
	topics    map[uint32][]H
	subtopics map[uint32]map[uint32][]H
}

// NewRegistry creates an empty registry.
func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{
		topics:    make(map[uint32][]H),
		subtopics: make(map[uint32]map[uint32][]H),
	}
}

// Add registers a topic-wide handler. It also receives messages for
// subtopics that have no handlers of their own.
func (r *Registry[H]) Add(tid uint32, h H) {
	r.topics[tid] = append(r.topics[tid], h)
}

// AddSubtopic registers a handler for one subtopic of a topic.
func (r *Registry[H]) AddSubtopic(tid, subtid uint32, h H) {
	m := r.subtopics[tid]
	if m == nil {
		m = make(map[uint32][]H)
		r.subtopics[tid] = m
	}
	m[subtid] = append(m[subtid], h)
}

// Remove drops every handler of a topic, subtopic handlers included.
// It reports whether anything was registered.
func (r *Registry[H]) Remove(tid uint32) bool {
	_, hadTopic := r.topics[tid]
	_, hadSub := r.subtopics[tid]
	delete(r.topics, tid)
	delete(r.subtopics, tid)
	return hadTopic || hadSub
}

// Has reports whether any handler is registered for tid.
func (r *Registry[H]) Has(tid uint32) bool {
	return len(r.topics[tid]) > 0 || len(r.subtopics[tid]) > 0
}

// Lookup returns the handlers a message for (tid, subtid) is delivered
// to, in registration order. Nil means the message is dropped.
func (r *Registry[H]) Lookup(tid, subtid uint32) []H {
	if subtid != 0 {
		if list := r.subtopics[tid][subtid]; len(list) > 0 {
			return clone(list)
		}
	}
	return clone(r.topics[tid])
}

// Len returns the number of topics with at least one handler.
func (r *Registry[H]) Len() int {
	n := len(r.topics)
	for tid := range r.subtopics {
		if _, ok := r.topics[tid]; !ok {
			n++
		}
	}
	return n
}

// Reset drops every handler.
func (r *Registry[H]) Reset() {
	r.topics = make(map[uint32][]H)
	r.subtopics = make(map[uint32]map[uint32][]H)
}

func clone[H any](list []H) []H {
	if len(list) == 0 {
		return nil
	}
	out := make([]H, len(list))
	copy(out, list)
	return out
}
