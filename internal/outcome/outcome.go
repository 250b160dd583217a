// Package outcome describes how a call to an optional collaborator ended.
// Components that fail open return an Outcome next to their value so callers
// and tests can tell a degraded result from a successful one.
package outcome

// Outcome is the result class of a call that may degrade.
type Outcome int

const (
	// Success means the collaborator produced a usable value.
	Success Outcome = iota
	// Degraded means the collaborator was not configured and a documented
	// default was used instead.
	Degraded
	// Failed means the collaborator was called and errored; a documented
	// default was used instead.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// OK reports whether the outcome is Success.
func (o Outcome) OK() bool { return o == Success }
