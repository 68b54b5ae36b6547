// Package subscription keeps the append-only log of subscription-creation
// events and serves the recency-ordered query over it.
package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paylog/asaas-relay/pkg/storage"
	"github.com/shopspring/decimal"
)

// DocumentKey is the subscription log's key in the document store.
const DocumentKey = "assinaturas"

// Query limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Record is one subscription-creation event. Fields the provider did not
// send persist as empty strings. Immutable once appended.
type Record struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	Value        decimal.Decimal `json:"value"`
	BillingType  string          `json:"billingType"`
	Cycle        string          `json:"cycle"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Document is the persisted log, in insertion order.
type Document struct {
	Subscriptions []Record `json:"assinaturas"`
}

// QueryResult is one page of recent subscriptions. Total and Ticket are
// computed over the returned page only, not the whole log; callers wanting
// global totals page through everything.
type QueryResult struct {
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
	Ticket decimal.Decimal `json:"ticket"`
	Items  []Record        `json:"itens"`
}

// Log serializes read-modify-write cycles on the document behind one
// mutex, same discipline as the payment ledger.
type Log struct {
	store storage.DocumentStore
	key   string
	mu    sync.Mutex
}

func NewLog(store storage.DocumentStore) *Log {
	return &Log{
		store: store,
		key:   DocumentKey,
	}
}

// EnsureExists idempotently creates the empty log document.
func (l *Log) EnsureExists(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensure(ctx)
}

func (l *Log) ensure(ctx context.Context) error {
	raw, err := l.store.Load(ctx, l.key)
	if err != nil {
		return err
	}
	if raw != nil {
		return nil
	}
	return l.write(ctx, &Document{Subscriptions: []Record{}})
}

func (l *Log) load(ctx context.Context) (*Document, error) {
	if err := l.ensure(ctx); err != nil {
		return nil, err
	}
	raw, err := l.store.Load(ctx, l.key)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("corrupt subscription document: %w", err)
	}
	return &doc, nil
}

func (l *Log) write(ctx context.Context, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return l.store.Save(ctx, l.key, raw)
}

// Append persists a new record at the end of the log.
func (l *Log) Append(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load(ctx)
	if err != nil {
		return err
	}
	doc.Subscriptions = append(doc.Subscriptions, rec)
	return l.write(ctx, doc)
}

// Query returns the most recent records, newest first. limit is clamped to
// [1, MaxLimit]. The sort is stable, so records sharing a createdAt keep
// their insertion order.
func (l *Log) Query(ctx context.Context, limit int) (QueryResult, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load(ctx)
	if err != nil {
		return QueryResult{}, err
	}

	items := make([]Record, len(doc.Subscriptions))
	copy(items, doc.Subscriptions)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit < len(items) {
		items = items[:limit]
	}

	total := decimal.Zero
	for _, s := range items {
		total = total.Add(s.Value)
	}
	ticket := decimal.Zero
	if len(items) > 0 {
		ticket = total.Div(decimal.NewFromInt(int64(len(items))))
	}

	return QueryResult{
		Count:  len(items),
		Total:  total,
		Ticket: ticket,
		Items:  items,
	}, nil
}
