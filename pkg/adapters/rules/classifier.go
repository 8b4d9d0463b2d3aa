// Package rules provides an offline reasoning engine: a keyword classifier and
// canned responder replies. It needs no network and is the default engine when
// no language model is configured.
package rules

import (
	"context"
	"strings"
	"unicode"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/ports"
)

// Keywords maps each intent to the words that select it. Intents are tried in
// the order of domain.Intents, so a message naming both a symptom and a bill is medical.
var Keywords = map[domain.Intent][]string{
	domain.IntentMedical: {
		"pain", "hurt", "hurts", "ache", "fever", "cough", "symptom", "symptoms", "sick",
		"headache", "nausea", "dizzy", "bleeding", "rash", "injury", "medication", "medicine", "knee",
	},
	domain.IntentScheduling: {
		"appointment", "appointments", "book", "booking", "schedule", "reschedule", "cancel",
		"availability", "available", "doctor", "slot", "visit",
	},
	domain.IntentPayment: {
		"bill", "billing", "invoice", "invoices", "payment", "pay", "charge", "charges",
		"insurance", "refund", "cost", "price", "copay",
	},
	domain.IntentIdentity: {
		"email", "verify", "register", "account", "login", "identity",
	},
	domain.IntentOther: {
		"else", "menu", "start", "help",
	},
}

// followUp is the intent a message without keywords keeps when a specialist
// is already handling the thread.
var followUp = map[domain.Responder]domain.Intent{
	domain.Clinical:   domain.IntentMedical,
	domain.Scheduling: domain.IntentScheduling,
	domain.Billing:    domain.IntentPayment,
}

// Classifier tags messages by keyword.
type Classifier struct{}

var _ ports.Classifier = Classifier{}

// Classify returns the first intent whose keywords appear in the message.
// Without a match a follow-up stays with the active specialist, and anything
// else is IntentOther.
func (Classifier) Classify(ctx context.Context, req ports.ClassifyRequest) (domain.Intent, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(req.Message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}

	for _, intent := range domain.Intents {
		for _, kw := range Keywords[intent] {
			if words[kw] {
				return intent, nil
			}
		}
	}

	if req.Thread != nil {
		if in, ok := followUp[req.Thread.Active]; ok {
			return in, nil
		}
	}
	return domain.IntentOther, nil
}
