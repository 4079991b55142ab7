package kernel

// CompileError reports an unsupported or malformed expression shape, or a
// shader that failed to compile. A failed signature is never cached, so the
// caller may retry after fixing the expression.
type CompileError struct {
	Sig string
	Msg string
}

func (e *CompileError) Error() string {
	if e.Sig == "" {
		return "kernel: compile: " + e.Msg
	}
	return "kernel: compile " + e.Sig + ": " + e.Msg
}
