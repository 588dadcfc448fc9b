package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/podcheck/internal/logger"
)

var (
	// ErrNotFound is returned by stores when a goal, check-in, or job does not exist.
	ErrNotFound = stderrors.New("not found")
	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = stderrors.New("conflict")
	// ErrInvalidTimezone marks a goal whose timezone is not a loadable IANA zone.
	ErrInvalidTimezone = stderrors.New("invalid timezone")
	// ErrInvalidInput marks caller-supplied data the core refuses to act on.
	ErrInvalidInput = stderrors.New("invalid input")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
