// Package verr defines the typed error categories every parse and
// address-translation function in this module returns.
package verr

import "errors"

var (
	// ErrBadSignature means a magic number or signature field did not match.
	ErrBadSignature = errors.New("bad signature")

	// ErrBadStructure means a signature matched but a structural invariant
	// failed: a size field out of range, a count exceeding the buffer, a
	// checksum mismatch.
	ErrBadStructure = errors.New("bad structure")

	// ErrMissingDisks means a read needs a physical member that is absent
	// and no fallback member can serve it.
	ErrMissingDisks = errors.New("missing disks")

	// ErrLayoutNotSupported means a recognized but unimplemented layout,
	// algorithm, or segment type was encountered.
	ErrLayoutNotSupported = errors.New("layout not supported")

	// ErrIO means the underlying ReadAt on a physical member failed.
	ErrIO = errors.New("io error")

	// ErrSegmentUnreadable means an LVM2 segment type that is
	// structurally recognized but never produces data (an "error"
	// segment) was opened.
	ErrSegmentUnreadable = errors.New("segment unreadable")
)
