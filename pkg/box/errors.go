package box

import "fmt"

// TransportError describes a failed exchange with the store.
// It is informational: the box stays usable and the next successful read
// supersedes it.
type TransportError struct {
	Op   string // read, seed, subscribe or write
	Path string // slot path for writes, RootPath otherwise
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
