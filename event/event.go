// Package event verifies and applies the notifications the payment platform
// posts to this store.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/resource"
)

type Type string

const (
	TypeCheckoutSessionCompleted Type = "checkout.session.completed"
	TypeRefundUpdated            Type = "refund.updated"
)

type Object struct {
	CheckoutSession *resource.CheckoutSessionPayload `json:"checkout_session,omitempty"`
	Refund          *resource.RefundPayload          `json:"refund,omitempty"`
}

type Event struct {
	// ID comes from the delivery headers, not the body.
	ID string `json:"-"`
	// Mode is the mode the event belongs to, set by Service.Resolve.
	Mode   enum.Mode `json:"-"`
	Type   Type      `json:"event_type"`
	Object Object    `json:"object"`
}

// ValidationError is an event that can never be applied, however often it
// is retried. The receiver answers it with a client error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Message
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Parse decodes an event body.
func Parse(id string, body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, invalid("malformed body: %v", err)
	}
	if ev.Type == "" {
		return nil, invalid("missing event_type")
	}
	ev.ID = id
	return &ev, nil
}
