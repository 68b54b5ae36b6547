// Package ledger owns the append-only record of confirmed payments and the
// daily record-high water mark, and computes the daily financial closing.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/paylog/asaas-relay/pkg/storage"
	"github.com/shopspring/decimal"
)

// DocumentKey is the ledger's key in the document store.
const DocumentKey = "pagamentos"

// Payment is a single confirmed payment. Immutable once appended.
type Payment struct {
	Value decimal.Decimal `json:"valor"`
	Date  time.Time       `json:"data"`
}

// Document is the persisted ledger: the payment sequence in append order
// plus the record high. Record tracks the highest daily total ever closed,
// not the highest single payment.
type Document struct {
	Payments []Payment       `json:"pagamentos"`
	Record   decimal.Decimal `json:"recorde"`
}

// Ledger serializes every read-modify-write cycle on the document behind
// one mutex, so two racing appends cannot silently drop each other's
// record during the full-document rewrite.
type Ledger struct {
	store storage.DocumentStore
	key   string
	now   func() time.Time
	mu    sync.Mutex
}

func New(store storage.DocumentStore) *Ledger {
	return &Ledger{
		store: store,
		key:   DocumentKey,
		now:   time.Now,
	}
}

// EnsureExists idempotently creates the zero-value document. An existing
// document is never overwritten.
func (l *Ledger) EnsureExists(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensure(ctx)
}

func (l *Ledger) ensure(ctx context.Context) error {
	raw, err := l.store.Load(ctx, l.key)
	if err != nil {
		return err
	}
	if raw != nil {
		return nil
	}
	return l.write(ctx, &Document{Payments: []Payment{}, Record: decimal.Zero})
}

func (l *Ledger) load(ctx context.Context) (*Document, error) {
	if err := l.ensure(ctx); err != nil {
		return nil, err
	}
	raw, err := l.store.Load(ctx, l.key)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("corrupt ledger document: %w", err)
	}
	return &doc, nil
}

func (l *Ledger) write(ctx context.Context, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return l.store.Save(ctx, l.key, raw)
}

// Append records a confirmed payment. The amount is coerced to
// non-negative (negative input counts as zero) and stamped with the
// current instant.
func (l *Ledger) Append(ctx context.Context, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.IsNegative() {
		amount = decimal.Zero
	}

	doc, err := l.load(ctx)
	if err != nil {
		return err
	}
	doc.Payments = append(doc.Payments, Payment{
		Value: amount,
		Date:  l.now().UTC(),
	})
	return l.write(ctx, doc)
}

// ReadAll returns the full document, creating it first when absent.
func (l *Ledger) ReadAll(ctx context.Context) (*Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// DaySummary is the outcome of closing one calendar day.
type DaySummary struct {
	Day            string
	Total          decimal.Decimal
	PreviousRecord decimal.Decimal
	NewRecord      bool
}

// CloseDay sums the payments that fall on day (YYYY-MM-DD, evaluated in
// loc) and, when the total beats the stored record, persists the new
// record. The document is rewritten even when the record stands, keeping
// store semantics simple. A day with no payments writes nothing.
func (l *Ledger) CloseDay(ctx context.Context, day string, loc *time.Location) (DaySummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load(ctx)
	if err != nil {
		return DaySummary{}, err
	}

	total := decimal.Zero
	for _, p := range doc.Payments {
		if p.Date.In(loc).Format("2006-01-02") == day {
			total = total.Add(p.Value)
		}
	}

	summary := DaySummary{
		Day:            day,
		Total:          total,
		PreviousRecord: doc.Record,
	}

	if total.IsZero() {
		return summary, nil
	}

	if total.GreaterThan(doc.Record) {
		doc.Record = total
		summary.NewRecord = true
	}
	if err := l.write(ctx, doc); err != nil {
		return DaySummary{}, err
	}
	return summary, nil
}
