// Package ddferr defines the error taxonomy shared by every ddfmm
// component: a small set of sentinel kinds, wrapped with rank/phase/key
// context at the call site via fmt.Errorf("%w: ..."), never a bespoke
// per-component error type.
package ddferr

import "errors"

// Sentinel error kinds. See spec §7 for the taxonomy these implement.
var (
	// ErrConfig is a missing or inconsistent configuration option.
	// Fatal at setup.
	ErrConfig = errors.New("ddfmm: config error")

	// ErrIO is an unreadable operator library or geometry input.
	// Fatal at setup.
	ErrIO = errors.New("ddfmm: io error")

	// ErrProtocol is an exchange-phase mismatch: a different rank
	// requested a different mask, or an owner could not be found.
	// Fatal at runtime.
	ErrProtocol = errors.New("ddfmm: protocol error")

	// ErrInvariant is an internal assertion failure, such as accessing
	// a nonlocal box without a prior get. Fatal; indicates a bug.
	ErrInvariant = errors.New("ddfmm: invariant violation")

	// ErrNumeric is a zero-denominator kernel evaluation at coincident
	// source/target points. Non-fatal: the contribution is skipped and
	// the caller is expected to log a warning and continue.
	ErrNumeric = errors.New("ddfmm: numeric warning")
)

// Fatal reports whether err belongs to a kind that must abort the
// evaluation rather than be absorbed and continued past.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrIO) ||
		errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrInvariant)
}
