package model

// RemoteError is an error reported by another process, for example an
// exception received by the ingest server. It keeps the details a local
// error value would otherwise provide through its type.
type RemoteError struct {
	Message string
	Src     string
	Stack   string
	Inner   *RemoteError
}

func (e *RemoteError) Error() string { return e.Message }

// Source names where the error originated.
func (e *RemoteError) Source() string { return e.Src }

// StackTrace returns the stack recorded by the remote side.
func (e *RemoteError) StackTrace() string { return e.Stack }

func (e *RemoteError) Unwrap() error {
	if e.Inner == nil {
		return nil
	}
	return e.Inner
}
