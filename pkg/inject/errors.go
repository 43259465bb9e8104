package inject

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrValidation is returned when the caller passes something that can never
	// be injected, such as a native function or non-serializable arguments.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedOperation is returned when the active capability cannot
	// perform the request, such as inline JavaScript on the scripting capability.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrTargetLost marks failures caused by the tab or frame going away
	// during an injection.
	ErrTargetLost = errors.New("target lost")
)

// Messages the browser uses when the target disappears under an injection.
var targetLostMessage = regexp.MustCompile(
	`^No frame with id \d+ in tab \d+\.$|^No tab with id: \d+\.$|^The tab was closed\.$|^The frame was removed\.$`,
)

type targetLostError struct {
	msg string
}

func (e *targetLostError) Error() string { return e.msg }

func (e *targetLostError) Is(target error) bool { return target == ErrTargetLost }

// TargetLost returns an error carrying the browser's message for a vanished
// target. It matches ErrTargetLost with errors.Is.
func TargetLost(format string, args ...any) error {
	return &targetLostError{msg: fmt.Sprintf(format, args...)}
}

// NoTab is the error hosts return for an unknown or closed tab.
func NoTab(tabID int) error {
	return TargetLost("No tab with id: %d.", tabID)
}

// NoFrame is the error hosts return for an unknown or removed frame.
func NoFrame(tabID, frameID int) error {
	return TargetLost("No frame with id %d in tab %d.", frameID, tabID)
}

// IsTargetLost reports whether err was caused by the target disappearing.
// Joined errors count only when every member is a target loss.
func IsTargetLost(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		if len(errs) == 0 {
			return false
		}
		for _, e := range errs {
			if !IsTargetLost(e) {
				return false
			}
		}
		return true
	}
	if errors.Is(err, ErrTargetLost) {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if targetLostMessage.MatchString(e.Error()) {
			return true
		}
	}
	return false
}

// IgnoreTargetErrors swallows target-loss failures and returns every other
// error unchanged.
func IgnoreTargetErrors(err error) error {
	if IsTargetLost(err) {
		return nil
	}
	return err
}
