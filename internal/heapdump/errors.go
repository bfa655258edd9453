package heapdump

import (
	apperrors "github.com/btraceio/heapdump/pkg/errors"
)

// Sentinel errors returned by the engine. They wrap the shared AppError
// codes from pkg/errors so callers across the service can test for them
// with errors.Is regardless of which package raised them.
var (
	ErrCorruptDump     = apperrors.ErrCorruptDump
	ErrUnsupportedDump = apperrors.ErrUnsupportedDump
	ErrStaleIndex      = apperrors.ErrStaleIndex
	ErrMissingReferent = apperrors.ErrMissingReferent
	ErrIndexIOError    = apperrors.ErrIndexIOError
)
