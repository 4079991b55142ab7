package expr

// Error reports a shape or numeric-type mismatch detected while composing an
// expression. Construction fails fast; nothing is deferred to execution.
type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string {
	return "expr: " + e.Op + ": " + e.Msg
}
