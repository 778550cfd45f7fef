package photopipe

import "fmt"

// ExtractionError reports a failure of the external geospatial extract.
// It is fatal: the run aborts before venue processing begins.
type ExtractionError struct {
	Source string // e.g. the extract endpoint
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("geospatial extract %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or malformed required input.
// It is fatal and fails fast.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Msg)
}

// FetchError reports a network or timeout failure for a single candidate.
// Non-fatal: the candidate is demoted, the run continues.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError reports a format, size, or license rejection.
// Non-fatal; Reason is always set and human-readable.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation %s: %s", e.URL, e.Reason)
}

// PersistenceError reports an upload or record-creation failure for one venue.
// Non-fatal per venue; logged distinctly from validation failures.
type PersistenceError struct {
	VenueSlug string
	Op        string // "upload" or "create" or "set-primary"
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s for %s: %v", e.Op, e.VenueSlug, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
