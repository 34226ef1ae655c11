package scheduler

// ResumeStatus is the outcome of resuming a coroutine.
type ResumeStatus int

const (
	// Finished means the coroutine returned.
	Finished ResumeStatus = iota
	// Yielded means the coroutine suspended itself and wants to continue later.
	Yielded
	// Errored means the coroutine raised an error. The error stays with the
	// coroutine; the scheduler only discards the task.
	Errored
)

func (s ResumeStatus) String() string {
	switch s {
	case Finished:
		return "finished"
	case Yielded:
		return "yielded"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// Coroutine is a suspended execution context owned by a script runtime.
// Resume runs it with zero arguments until it yields, returns or errors.
type Coroutine interface {
	Resume() ResumeStatus
}

// Pinner keeps coroutines reachable by their runtime while a task holds them.
// The returned release func drops the pin.
type Pinner interface {
	Pin(co Coroutine) (release func())
}

type nopPinner struct{}

func (nopPinner) Pin(Coroutine) func() { return func() {} }

// CoroutineRef is an owning handle on a pinned coroutine.
type CoroutineRef struct {
	co      Coroutine
	release func()
}

// NewCoroutineRef pins co with p and returns the owning handle.
func NewCoroutineRef(co Coroutine, p Pinner) *CoroutineRef {
	return &CoroutineRef{co: co, release: p.Pin(co)}
}

// Valid reports whether the handle still pins its coroutine.
func (r *CoroutineRef) Valid() bool {
	return r != nil && r.co != nil && r.release != nil
}

// Coroutine returns the pinned coroutine, or nil once released.
func (r *CoroutineRef) Coroutine() Coroutine {
	return r.co
}

// Release unpins the coroutine. Only the first call has an effect.
func (r *CoroutineRef) Release() {
	if !r.Valid() {
		return
	}
	release := r.release
	r.co, r.release = nil, nil
	release()
}
