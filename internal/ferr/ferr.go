// Package ferr classifies pump errors along the policy boundary the
// dispatch loop acts on: fatal (stop the worker) versus transient
// (drop the session and reconnect).
package ferr

import "errors"

// Fatal wraps an error that must stop the worker. Downstream state is rolled
// back and the checkpoint is not advanced.
type Fatal struct {
	Err error
}

func (f *Fatal) Error() string { return f.Err.Error() }
func (f *Fatal) Unwrap() error { return f.Err }

// AsFatal wraps err as Fatal.
func AsFatal(err error) error {
	if err == nil {
		return nil
	}
	return &Fatal{Err: err}
}

// IsFatal reports whether err (or anything it wraps) is a Fatal.
func IsFatal(err error) bool {
	var f *Fatal
	return errors.As(err, &f)
}

// Transient wraps an error caused by a network-level hiccup. The dispatch
// loop drops the current session, rolls back any uncommitted downstream
// work, and reconnects.
type Transient struct {
	Err error
}

func (t *Transient) Error() string { return t.Err.Error() }
func (t *Transient) Unwrap() error { return t.Err }

// AsTransient wraps err as Transient.
func AsTransient(err error) error {
	if err == nil {
		return nil
	}
	return &Transient{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is a Transient.
func IsTransient(err error) bool {
	var t *Transient
	return errors.As(err, &t)
}

// ErrConnectionLost is returned by an UpstreamClient's FetchEvent when the
// network connection to the upstream was lost mid-fetch. It is always
// wrapped as Transient by the client before reaching the dispatch loop.
var ErrConnectionLost = errors.New("connection lost")
