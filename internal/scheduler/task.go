package scheduler

// Kind identifies which variant a Task holds.
type Kind int

const (
	KindCallback Kind = iota
	KindCoroutine
)

func (k Kind) String() string {
	switch k {
	case KindCallback:
		return "callback"
	case KindCoroutine:
		return "coroutine"
	}
	return "unknown"
}

// Task is a unit of schedulable work: either a callback invoked once, or a
// pinned coroutine resumed until it stops yielding. The variant is fixed at
// construction.
type Task struct {
	kind     Kind
	callback func()
	ref      *CoroutineRef
}

// NewCallbackTask returns a callback task. fn must not be nil.
func NewCallbackTask(fn func()) *Task {
	return &Task{kind: KindCallback, callback: fn}
}

func newCoroutineTask(ref *CoroutineRef) *Task {
	return &Task{kind: KindCoroutine, ref: ref}
}

// Kind returns the task variant.
func (t *Task) Kind() Kind {
	return t.kind
}
