package notify

import (
	"context"

	"github.com/shopspring/decimal"
)

// Notifier defines the interface for a notification sink. Delivery is
// best effort everywhere: callers treat a failed Send as a log line, never
// as a reason to fail the work that produced the message.
type Notifier interface {
	Name() string
	Send(ctx context.Context, message string) error
	Close() error
}

// BRL formats a currency amount the way the notification channel shows it.
func BRL(v decimal.Decimal) string {
	return "R$ " + v.StringFixed(2)
}
