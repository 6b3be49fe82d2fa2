package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned for a search request that cannot be sent.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrPartitionMismatch is returned when a partition names another collection.
	ErrPartitionMismatch = errors.New("partition does not belong to collection")

	// ErrNotStarted is returned by AwaitReady before the index and load stages ran.
	ErrNotStarted = errors.New("pipeline stages not started")
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
