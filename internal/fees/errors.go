package fees

import "fmt"

// InvalidArgumentError reports a sampling parameter outside its domain.
type InvalidArgumentError struct {
	Name  string
	Value int
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s must be positive, got %d", e.Name, e.Value)
}

// FetchError reports a block fetch that aborted the walk.
type FetchError struct {
	Block uint64
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch block %d: %v", e.Block, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
