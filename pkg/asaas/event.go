// Package asaas models the inbound webhook payload sent by the Asaas
// payment provider. Every nested object and field may be partially or
// fully absent; decoding is tolerant and defaults rather than failing.
package asaas

// Event discriminators this service acts on. Any other value is a no-op.
const (
	EventPaymentConfirmed    = "PAYMENT_CONFIRMED"
	EventSubscriptionCreated = "SUBSCRIPTION_CREATED"
)

// Placeholder shown when no candidate field carries a value.
const Placeholder = "—"

type Event struct {
	Event        string       `json:"event"`
	Payment      Payment      `json:"payment"`
	Subscription Subscription `json:"subscription"`
	Customer     Customer     `json:"customer"`
}

type Payment struct {
	Value        Amount `json:"value"`
	CustomerName string `json:"customerName"`
}

type Subscription struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Customer     string `json:"customer"`
	CustomerName string `json:"customerName"`
	Value        Amount `json:"value"`
	BillingType  string `json:"billingType"`
	Cycle        string `json:"cycle"`
}

type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FirstNonEmpty evaluates candidates in order and returns the first
// non-empty one, or "" when none matches. Call sites that want the "—"
// placeholder pass it as the final candidate.
func FirstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
