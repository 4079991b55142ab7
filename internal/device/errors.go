package device

// Error reports a queue or device failure surfaced at synchronization or
// readback. The engine never retries on its own.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "device: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
