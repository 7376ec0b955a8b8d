package process

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a program cannot be resolved to an executable file
var ErrNotFound = errors.New("executable not found")

// StartError is returned by Launcher.Start when a program could not be started
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the executable does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
