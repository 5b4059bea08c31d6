// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package devices

import "github.com/pkg/errors"

// Error classes shared by all drivers. Drivers wrap these with context, use errors.Is to
// classify a returned error.
var (
	// ErrInvalidArgument is returned for malformed or out-of-range caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTimeout is returned when a bounded wait on a pin exceeds its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrChecksum flags a decoded frame whose checksum does not match. It is not fatal: the
	// reading is returned alongside the error.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrApply is returned when an output rejects a new configuration.
	ErrApply = errors.New("cannot apply configuration")
	// ErrAcquire is returned when a pin or other resource cannot be obtained or configured
	// while constructing a device.
	ErrAcquire = errors.New("cannot acquire resource")
)

// LogPrintf is a function used by the drivers to print logging info.
type LogPrintf func(format string, v ...interface{})

// Prefixed returns a LogPrintf that prepends prefix to every format string. A nil logger
// yields a no-op function so drivers can log unconditionally.
func Prefixed(l LogPrintf, prefix string) LogPrintf {
	if l == nil {
		return func(format string, v ...interface{}) {}
	}
	return func(format string, v ...interface{}) {
		l(prefix+format, v...)
	}
}
