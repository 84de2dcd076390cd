package lifecycle

import (
	"context"

	"alumniportal/internal/model"
)

// Type-specific forward statuses. The shared PENDING/PAID/APPROVED/REJECTED
// statuses live in the model package.
const (
	StatusActive         = "ACTIVE"           // membership
	StatusReadyForPickup = "READY_FOR_PICKUP" // certificate, pickup only
	StatusOutForDelivery = "OUT_FOR_DELIVERY" // certificate, home delivery only
	StatusDelivered      = "DELIVERED"        // certificate terminal
	StatusReceived       = "RECEIVED"         // syndicate terminal
)

// Definition parameterizes the generic Manager per request type: a transition
// table, delivery-method routing, and an optional hook fired when the request
// reaches PAID. The engine is built once; each module supplies one of these.
type Definition struct {
	Type string

	// Transitions maps a status to its allowed next statuses. Statuses with
	// no entry are terminal. REJECTED is reachable from any non-terminal
	// status and is handled by RejectRequest, so it never appears as a value.
	Transitions map[string][]string

	// DeliveryStates maps a status to the delivery method it requires, e.g.
	// READY_FOR_PICKUP is forbidden for home-delivery requests.
	DeliveryStates map[string]string

	// RequiresDeliveryMethod makes the delivery method mandatory at creation.
	RequiresDeliveryMethod bool

	// OnPaid runs inside the transaction whenever the request reaches PAID,
	// either at creation (fully wallet-funded) or when the gateway remainder
	// clears.
	OnPaid func(ctx context.Context, req *model.RequestCore) error
}

// CanTransition reports whether the table allows moving from one status to
// another. Backward moves are impossible by construction: the tables only
// contain forward edges.
func (d Definition) CanTransition(from, to string) bool {
	for _, next := range d.Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status accepts no further transitions.
// REJECTED is always terminal; so is any status without outgoing edges.
func (d Definition) IsTerminal(status string) bool {
	if status == model.StatusRejected {
		return true
	}
	return len(d.Transitions[status]) == 0
}

// RequiredDelivery returns the delivery method a target status demands, empty
// when the status is method-agnostic.
func (d Definition) RequiredDelivery(status string) string {
	return d.DeliveryStates[status]
}

// Membership returns the subscription definition: approval activates the
// membership, there is no delivery leg.
func Membership() Definition {
	return Definition{
		Type: model.RequestTypeMembership,
		Transitions: map[string][]string{
			model.StatusPending:  {model.StatusPaid},
			model.StatusPaid:     {model.StatusApproved},
			model.StatusApproved: {StatusActive},
		},
	}
}

// Certificate returns the certificate definition. After approval the request
// forks on delivery method and converges on DELIVERED.
func Certificate() Definition {
	return Definition{
		Type:                   model.RequestTypeCertificate,
		RequiresDeliveryMethod: true,
		Transitions: map[string][]string{
			model.StatusPending:  {model.StatusPaid},
			model.StatusPaid:     {model.StatusApproved},
			model.StatusApproved: {StatusReadyForPickup, StatusOutForDelivery},
			StatusReadyForPickup: {StatusDelivered},
			StatusOutForDelivery: {StatusDelivered},
		},
		DeliveryStates: map[string]string{
			StatusReadyForPickup: model.DeliveryPickup,
			StatusOutForDelivery: model.DeliveryHome,
		},
	}
}

// Syndicate returns the syndicate subscription definition.
func Syndicate() Definition {
	return Definition{
		Type: model.RequestTypeSyndicate,
		Transitions: map[string][]string{
			model.StatusPending:  {model.StatusPaid},
			model.StatusPaid:     {model.StatusApproved},
			model.StatusApproved: {StatusReceived},
		},
	}
}
