package cleanup

import "strings"

// State is the confirmation state machine of spec.md §4.3:
// Planned -> AwaitingConfirmation -> {Confirmed | Aborted}.
type State string

const (
	StatePlanned              State = "Planned"
	StateAwaitingConfirmation State = "AwaitingConfirmation"
	StateConfirmed            State = "Confirmed"
	StateAborted              State = "Aborted"
)

// ConfirmationChannel supplies the "CONFIRM" string the caller can provide
// instead of setting opts.Confirmed directly, e.g. a prompt read from
// stdin. Adapted from tools/si's confirmYN interactive prompt, generalized
// to the spec's explicit "yes flag or CONFIRM string" gate rather than a
// free-form y/n loop.
type ConfirmationChannel func() (response string, ok bool)

// Resolve walks the confirmation state machine for opts. When no target
// falls outside Root, confirmation is not required and the result is
// immediately Confirmed. Otherwise it is Confirmed only if opts.Confirmed
// is already set, or the channel (if provided) yields exactly "CONFIRM".
func Resolve(opts Options, channel ConfirmationChannel) State {
	if !opts.HasOutOfRootTargets() {
		return StateConfirmed
	}
	if opts.Confirmed {
		return StateConfirmed
	}
	if channel == nil {
		return StateAborted
	}
	resp, ok := channel()
	if !ok {
		return StateAborted
	}
	if strings.TrimSpace(resp) == "CONFIRM" {
		return StateConfirmed
	}
	return StateAborted
}
