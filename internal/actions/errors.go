// internal/actions/errors.go
package actions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jason-s-yu/holosync/internal/gate"
)

// Refusal reasons produced by resolvers on top of the gate's.
const (
	// ReasonIllegal is a local legality failure.
	ReasonIllegal gate.Reason = "illegal"
	// ReasonInspectOnly means the request was downgraded to inspection: nothing is sent.
	ReasonInspectOnly gate.Reason = "inspect-only"
)

// ErrActionTimeout is returned when a submission does not settle within the action timeout.
// The in-flight slot is released before it is returned.
var ErrActionTimeout = errors.New("action timed out")

// RefusalError is a local refusal. It never reaches the network.
type RefusalError struct {
	Reason gate.Reason
	// Message is the localized, user-facing summary.
	Message string
	// Details itemizes the individual causes, e.g. one line per rejected bloom target.
	Details []string
}

func (e *RefusalError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("refused (%s): %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("refused (%s): %s: %s", e.Reason, e.Message, strings.Join(e.Details, "; "))
}

// Unwrap exposes gate.ErrProtocolViolation for the protocol-violation reason, so that class
// of refusal can be told apart from ordinary ones with errors.Is.
func (e *RefusalError) Unwrap() error {
	if e.Reason == gate.ReasonProtocolViolation {
		return gate.ErrProtocolViolation
	}
	return nil
}

// ReasonOf extracts the refusal reason from err, or gate.ReasonNone.
func ReasonOf(err error) gate.Reason {
	var refusal *RefusalError
	if errors.As(err, &refusal) {
		return refusal.Reason
	}
	return gate.ReasonNone
}
