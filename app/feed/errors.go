package feed

import (
	"fmt"
)

// MalformedFeedError reports a document that is not well-formed XML or lacks
// a field that is mandatory (or mandatory once its parent element is present).
type MalformedFeedError struct {
	Reason string
	Err    error
}

func (e *MalformedFeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed feed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed feed: %s", e.Reason)
}

func (e *MalformedFeedError) Unwrap() error {
	return e.Err
}

func malformed(reason string, err error) *MalformedFeedError {
	return &MalformedFeedError{Reason: reason, Err: err}
}

// FetchError reports any transport-level failure: DNS, timeout, non-2xx
// status, unreadable or empty body.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
