package discovery

import "fmt"

// StoreError reports an account store failure for one domain. Other domains
// in the batch are still merged.
type StoreError struct {
	Domain string
	Op     string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s account %s: %v", e.Op, e.Domain, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// FetchError reports a message whose metadata could not be fetched.
type FetchError struct {
	MessageID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch message %s: %v", e.MessageID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
