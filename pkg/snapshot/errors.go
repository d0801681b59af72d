package snapshot

import "fmt"

// LocatorError reports that the running container or the database file inside
// it could not be pinned down to exactly one match.
type LocatorError struct {
	Reason string
	Err    error
}

func (e *LocatorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("locate database: %s: %v", e.Reason, e.Err)
	}
	return "locate database: " + e.Reason
}

func (e *LocatorError) Unwrap() error {
	return e.Err
}

// CopyError reports an I/O failure while streaming snapshot bytes.
type CopyError struct {
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy snapshot to %s: %v", e.Path, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}
