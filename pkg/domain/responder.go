package domain

import (
	"fmt"
	"strings"
)

// Responder identifies one of the fixed specialized handlers of a turn.
type Responder string

const (
	// Triage handles identity verification and general routing. It is the hub.
	Triage Responder = "Triage"
	// Clinical handles symptoms and general medical questions.
	Clinical Responder = "Clinical"
	// Scheduling handles appointment booking and cancellation.
	Scheduling Responder = "Scheduling"
	// Billing handles invoices, payments and insurance.
	Billing Responder = "Billing"
)

// Priority is the order in which responders are considered when more than one
// could handle an intent.
var Priority = []Responder{Triage, Clinical, Scheduling, Billing}

var responderAliases = map[string]Responder{
	"triage":      Triage,
	"identity":    Triage,
	"clinical":    Clinical,
	"scheduling":  Scheduling,
	"appointment": Scheduling,
	"billing":     Billing,
}

// ParseResponder maps a wire name to a Responder.
// Matching is case-insensitive and accepts the legacy names "Identity" and "Appointment".
func ParseResponder(name string) (Responder, error) {
	r, ok := responderAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownResponder, name)
	}
	return r, nil
}

// Valid reports whether r is one of the known responders.
func (r Responder) Valid() bool {
	switch r {
	case Triage, Clinical, Scheduling, Billing:
		return true
	}
	return false
}

func (r Responder) String() string { return string(r) }

// Intent is the capability tag a classifier assigns to a user message.
type Intent string

const (
	IntentMedical    Intent = "medical"
	IntentScheduling Intent = "scheduling"
	IntentPayment    Intent = "payment"
	IntentIdentity   Intent = "identity"
	IntentOther      Intent = "other"
)

// Intents lists every intent tag a classifier may produce.
var Intents = []Intent{IntentMedical, IntentScheduling, IntentPayment, IntentIdentity, IntentOther}

// ParseIntent normalizes a tag. Unknown tags collapse to IntentOther.
func ParseIntent(tag string) Intent {
	in := Intent(strings.ToLower(strings.TrimSpace(tag)))
	for _, known := range Intents {
		if in == known {
			return in
		}
	}
	return IntentOther
}
