package boltsecretstore

import "fmt"

var (
	// ErrRootBucketNotFound specifies that there is no root bucket which
	// can/should happen only if the store has been corrupted or was initialized
	// incorrectly.
	ErrRootBucketNotFound = fmt.Errorf("root bucket not found")
	// ErrMissingDataKey specifies that a data key is required to perform the
	// requested operation.
	ErrMissingDataKey = fmt.Errorf("missing data key")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = fmt.Errorf("store is closed")
)
