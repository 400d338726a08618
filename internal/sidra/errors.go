package sidra

import (
	"fmt"
)

// Error wraps a failure with the dataset it happened on.
type Error struct {
	Op    string // "fetch", "decode"
	Table string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sidra %s [t/%s]: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, table string, err error) error {
	return &Error{Op: op, Table: table, Err: err}
}
