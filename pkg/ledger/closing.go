package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paylog/asaas-relay/pkg/notify"
)

// Closing runs the daily financial closing: sum today's payments, update
// the record high and announce the result. The scheduled cron trigger and
// the manual HTTP trigger both land here; there is no separate path.
type Closing struct {
	ledger   *Ledger
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

func NewClosing(ledger *Ledger, notifier notify.Notifier, loc *time.Location, log *slog.Logger) *Closing {
	return &Closing{
		ledger:   ledger,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		log:      log,
	}
}

// Run executes one closing. It never returns an error: the scheduled
// trigger has no caller around to observe a failure, so everything is
// logged and swallowed here.
func (c *Closing) Run(ctx context.Context) {
	if err := c.run(ctx); err != nil {
		c.log.Error("fechamento failed", "err", err)
	}
}

func (c *Closing) run(ctx context.Context) error {
	day := c.now().In(c.loc).Format("2006-01-02")

	summary, err := c.ledger.CloseDay(ctx, day, c.loc)
	if err != nil {
		return err
	}

	if summary.Total.IsZero() {
		c.log.Info("fechamento: no payments today, nothing to send", "day", day)
		return nil
	}

	c.log.Info("fechamento computed",
		"day", day,
		"total", summary.Total,
		"new_record", summary.NewRecord,
	)

	// The ledger update above is authoritative; a failed notification is
	// only a log line.
	if err := c.notifier.Send(ctx, ComposeMessage(summary)); err != nil {
		c.log.Error("fechamento notification failed", "err", err)
	}
	return nil
}

// ComposeMessage renders the closing summary for the notification channel.
func ComposeMessage(s DaySummary) string {
	msg := fmt.Sprintf("📅 **Fechamento diário:** %s\n", notify.BRL(s.Total))
	if s.NewRecord {
		msg += fmt.Sprintf("🏆 **Novo recorde diário!** (anterior: %s)", notify.BRL(s.PreviousRecord))
	} else {
		msg += fmt.Sprintf("📈 Recorde atual: %s", notify.BRL(s.PreviousRecord))
	}
	return msg
}
