package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/paylog/asaas-relay/pkg/asaas"
	"github.com/paylog/asaas-relay/pkg/notify"
	"github.com/paylog/asaas-relay/pkg/subscription"
)

type healthResponse struct {
	Status            string    `json:"status"`
	Service           string    `json:"service"`
	Version           string    `json:"version"`
	TZ                string    `json:"tz"`
	Time              time.Time `json:"time"`
	HasDiscordWebhook bool      `json:"hasDiscordWebhook"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:            "ok",
		Service:           s.cfg.Service,
		Version:           Version,
		TZ:                s.cfg.Timezone,
		Time:              time.Now().UTC(),
		HasDiscordWebhook: s.cfg.Outputs.Discord.URL != "",
	})
}

// handleAsaas classifies the inbound event by its discriminator and
// dispatches. Unrecognized events are acknowledged without action.
func (s *Server) handleAsaas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var ev asaas.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.log.Error("asaas: unreadable payload", "err", err)
		s.writeInternalError(w)
		return
	}

	var err error
	switch ev.Event {
	case asaas.EventPaymentConfirmed:
		err = s.handlePaymentConfirmed(r.Context(), ev)
	case asaas.EventSubscriptionCreated:
		err = s.handleSubscriptionCreated(r.Context(), ev)
	}
	if err != nil {
		s.log.Error("asaas: dispatch failed", "event", ev.Event, "err", err)
		s.writeInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePaymentConfirmed(ctx context.Context, ev asaas.Event) error {
	value := ev.Payment.Value.Decimal

	if err := s.ledger.Append(ctx, value); err != nil {
		return err
	}

	name := asaas.FirstNonEmpty(ev.Payment.CustomerName, ev.Customer.Name, asaas.Placeholder)
	msg := fmt.Sprintf("💰 Pagamento confirmado!\n👤 Cliente: %s\n💵 Valor: %s",
		name, notify.BRL(value))
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Error("payment notification failed", "err", err)
	}
	return nil
}

func (s *Server) handleSubscriptionCreated(ctx context.Context, ev asaas.Event) error {
	value := ev.Subscription.Value.Decimal

	rec := subscription.Record{
		ID:           ev.Subscription.ID,
		Name:         asaas.FirstNonEmpty(ev.Subscription.Name, ev.Subscription.Description),
		CustomerID:   asaas.FirstNonEmpty(ev.Subscription.Customer, ev.Customer.ID),
		CustomerName: asaas.FirstNonEmpty(ev.Customer.Name, ev.Subscription.CustomerName, asaas.Placeholder),
		Value:        value,
		BillingType:  ev.Subscription.BillingType,
		Cycle:        ev.Subscription.Cycle,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.subs.Append(ctx, rec); err != nil {
		return err
	}

	plan := asaas.FirstNonEmpty(ev.Subscription.Name, ev.Subscription.Description, asaas.Placeholder)
	msg := fmt.Sprintf("🆕 Nova assinatura criada!\n👤 Cliente: %s\n📦 Plano: %s\n💵 Valor: %s",
		rec.CustomerName, plan, notify.BRL(value))
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Error("subscription notification failed", "err", err)
	}
	return nil
}

// handleManualClosing runs the same closing the cron trigger runs. The
// acknowledgment is fixed regardless of the closing's outcome.
func (s *Server) handleManualClosing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.closing.Run(r.Context())

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Fechamento disparado"))
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := subscription.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	res, err := s.subs.Query(r.Context(), limit)
	if err != nil {
		s.log.Error("assinaturas query failed", "err", err)
		s.writeInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}
