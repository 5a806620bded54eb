package baseline

import "errors"

// ErrBusySite is returned when a site's lock cannot be acquired within the
// configured wait interval.
var ErrBusySite = errors.New("baseline: site is busy")

// ErrNotFound is returned when a requested baseline identifier does not
// exist in a site's history.
var ErrNotFound = errors.New("baseline: not found")

// ValidationResult is the outcome of validating a Baseline against the
// invariants in spec.md §3. Errors abort a commit; Warnings do not.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the baseline has no validation errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }
