// Package fault classifies delivery failures so the retry harness and the
// logs can tell transport problems from bad input and timeouts.
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies a class of delivery failure.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindInvalidInput Kind = "invalid_input"
	KindTimeout      Kind = "timeout"
	// KindConflict marks an attempt that could not take the per-report lock.
	KindConflict Kind = "conflict"
	// KindStorage marks a failure to read or write report state.
	KindStorage Kind = "storage"
)

// Sentinels for errors.Is matching on the kind alone.
var (
	ErrTransport    = &Fault{Kind: KindTransport}
	ErrInvalidInput = &Fault{Kind: KindInvalidInput}
	ErrTimeout      = &Fault{Kind: KindTimeout}
	ErrConflict     = &Fault{Kind: KindConflict}
	ErrStorage      = &Fault{Kind: KindStorage}
)

// Fault is a classified delivery failure.
type Fault struct {
	Kind Kind
	// Op names the operation that failed, e.g. "compose" or "send".
	Op  string
	Err error
}

func (f *Fault) Error() string {
	switch {
	case f.Op != "" && f.Err != nil:
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Op, f.Err)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	case f.Op != "":
		return fmt.Sprintf("%s: %s", f.Kind, f.Op)
	}
	return string(f.Kind)
}

func (f *Fault) Unwrap() error { return f.Err }

// Is matches any Fault of the same kind, so errors.Is(err, ErrTimeout)
// holds for every timeout fault regardless of Op and Err.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	return t.Kind == f.Kind && t.Op == "" && t.Err == nil
}

// Transport wraps err as a transport fault.
func Transport(op string, err error) error {
	return &Fault{Kind: KindTransport, Op: op, Err: err}
}

// InvalidInput builds an invalid input fault with a formatted reason.
func InvalidInput(op, format string, args ...any) error {
	return &Fault{Kind: KindInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// Timeout wraps err as a timeout fault.
func Timeout(op string, err error) error {
	return &Fault{Kind: KindTimeout, Op: op, Err: err}
}

// Conflict wraps err as a conflict fault.
func Conflict(op string, err error) error {
	return &Fault{Kind: KindConflict, Op: op, Err: err}
}

// Storage wraps err as a storage fault.
func Storage(op string, err error) error {
	return &Fault{Kind: KindStorage, Op: op, Err: err}
}

// KindOf returns the kind of the first Fault in err's chain. Unclassified
// deadline errors count as timeouts; anything else unclassified counts as a
// transport failure, since it came out of the send path.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}

// Classify returns err unchanged when it already carries a Fault and wraps it
// according to KindOf otherwise.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	return &Fault{Kind: KindOf(err), Op: op, Err: err}
}
