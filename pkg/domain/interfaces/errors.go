package interfaces

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound is returned (wrapped) by repositories when a record does not exist
	ErrNotFound = goerr.New("not found")

	// ErrStreamConsumed is yielded when a completion stream is iterated more than once
	ErrStreamConsumed = goerr.New("completion stream already consumed")
)
