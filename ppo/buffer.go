package ppo

// Transition is one step of experience. Obs is the normalized observation the policy acted on.
type Transition struct {
	Obs     []float64
	Action  []float64
	LogProb float64
	Reward  float64
	Value   float64
	Done    bool

	// filled in once the segment the transition belongs to is complete
	Advantage float64
	Return    float64
}

// Buffer holds the transitions collected for one update. It is cleared after every update, so nothing collected
// under an older policy is ever reused.
type Buffer struct {
	size        int
	transitions []Transition
}

func NewBuffer(size int) *Buffer {
	return &Buffer{
		size:        size,
		transitions: make([]Transition, 0, size),
	}
}

// Add appends transitions until the buffer is full, and returns how many were taken.
func (b *Buffer) Add(transitions ...Transition) int {
	free := b.size - len(b.transitions)
	if len(transitions) > free {
		transitions = transitions[:free]
	}
	b.transitions = append(b.transitions, transitions...)
	return len(transitions)
}

func (b *Buffer) Len() int {
	return len(b.transitions)
}

func (b *Buffer) Size() int {
	return b.size
}

func (b *Buffer) Full() bool {
	return len(b.transitions) >= b.size
}

// Transitions returns the buffered transitions themselves, not a copy.
func (b *Buffer) Transitions() []Transition {
	return b.transitions
}

func (b *Buffer) Reset() {
	b.transitions = b.transitions[:0]
}
