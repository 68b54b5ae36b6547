package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Multi fans a message out to every configured sink in parallel. Per-sink
// failures are logged and swallowed; Send itself never fails. An empty
// Multi is the valid "no notification channel configured" state.
type Multi struct {
	sinks []Notifier
	log   *slog.Logger
}

func NewMulti(log *slog.Logger, sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks, log: log}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Send(ctx context.Context, message string) error {
	if len(m.sinks) == 0 {
		m.log.Info("no notification sink configured, skipping")
		return nil
	}

	var wg sync.WaitGroup
	for _, s := range m.sinks {
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			if err := n.Send(ctx, message); err != nil {
				m.log.Error("notification failed", "sink", n.Name(), "err", err)
			}
		}(s)
	}
	wg.Wait()
	return nil
}

func (m *Multi) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
