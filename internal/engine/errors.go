package engine

// ErrorKind classifies engine failures.
type ErrorKind string

const (
	ErrInit     ErrorKind = "init"
	ErrEval     ErrorKind = "eval"
	ErrModule   ErrorKind = "module"
	ErrRuntime  ErrorKind = "runtime"
	ErrInternal ErrorKind = "internal"
)

// EngineError is the error type returned by engine adapters.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
