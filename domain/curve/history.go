package curve

// History is an append-only log of curve states with an explicit pointer to
// the current version. Undo moves the pointer back instead of mutating the
// log; a push after an undo discards the abandoned tail. Entry 0 is the raw
// curve and can never be undone away.
type History struct {
	states []CurveState
	head   int
}

// NewHistory creates a history rooted at the raw curve state.
func NewHistory(raw CurveState) *History {
	return &History{states: []CurveState{raw}, head: 0}
}

// Current returns the state the pointer rests on.
func (h *History) Current() CurveState {
	return h.states[h.head]
}

// Raw returns entry 0, the aggregated-from-wells curve.
func (h *History) Raw() CurveState {
	return h.states[0]
}

// Push appends a new state after the current pointer and advances to it.
func (h *History) Push(s CurveState) {
	h.states = append(h.states[:h.head+1], s)
	h.head = len(h.states) - 1
}

// Undo steps the pointer back one state. It reports false when already at
// the raw curve.
func (h *History) Undo() bool {
	if h.head == 0 {
		return false
	}
	h.head--
	return true
}

// Len is the number of states up to and including the current pointer.
func (h *History) Len() int {
	return h.head + 1
}

// States returns a copy of the visible log (up to the pointer), so callers
// cannot alias the internal slice.
func (h *History) States() []CurveState {
	out := make([]CurveState, h.head+1)
	copy(out, h.states[:h.head+1])
	return out
}

// Clone returns an independent history. A Push or Undo on either copy is
// invisible to the other.
func (h *History) Clone() *History {
	states := make([]CurveState, len(h.states))
	copy(states, h.states)
	return &History{states: states, head: h.head}
}
