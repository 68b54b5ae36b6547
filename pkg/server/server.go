// Package server exposes the HTTP surface: the inbound Asaas webhook, the
// manual closing trigger, the subscription query and the health probe.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/paylog/asaas-relay/pkg/config"
	"github.com/paylog/asaas-relay/pkg/ledger"
	"github.com/paylog/asaas-relay/pkg/notify"
	"github.com/paylog/asaas-relay/pkg/subscription"
)

// Version reported by the health endpoint.
const Version = "v1.0.0"

type Server struct {
	cfg      *config.Config
	ledger   *ledger.Ledger
	subs     *subscription.Log
	closing  *ledger.Closing
	notifier notify.Notifier
	log      *slog.Logger
}

func New(cfg *config.Config, led *ledger.Ledger, subs *subscription.Log, closing *ledger.Closing, notifier notify.Notifier, log *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		ledger:   led,
		subs:     subs,
		closing:  closing,
		notifier: notifier,
		log:      log,
	}
}

// Handler wires the routes behind the request-logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/asaas", s.handleAsaas)
	mux.HandleFunc("/fechamento-manual", s.handleManualClosing)
	mux.HandleFunc("/assinaturas", s.handleSubscriptions)
	return s.withRequestLog(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to encode response", "err", err)
	}
}

// writeInternalError answers with the generic failure acknowledgment. No
// payload detail ever leaks to the caller.
func (s *Server) writeInternalError(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusInternalServerError, map[string]any{
		"ok":    false,
		"error": "internal",
	})
}
