// Package feed consumes the ingestion service's normalized snapshot stream
// over WebSocket and republishes each sync batch onto the signal bus, where
// the engine picks it up. The feed does no detection and no validation
// beyond JSON well-formedness; snapshots arrive already normalized, paired,
// and grouped.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

const (
	// writeWait bounds control-frame writes to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead. pingPeriod must be shorter.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// BatchChannel is the bus channel carrying sync batches to the engine.
const BatchChannel = "sync_batches"

// Listener maintains a WebSocket subscription to the ingestion service and
// forwards batch messages to the signal bus, reconnecting with exponential
// backoff on failure.
type Listener struct {
	url    string
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewListener creates a Listener for the given ingestion WebSocket URL.
func NewListener(url string, bus domain.SignalBus, logger *slog.Logger) *Listener {
	return &Listener{
		url:    url,
		bus:    bus,
		logger: logger.With(slog.String("component", "feed_listener")),
	}
}

// Run connects and forwards messages until the context is cancelled. A
// dropped connection is retried with exponential backoff; the backoff resets
// after a successful connect.
func (l *Listener) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		err := l.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("feed connection lost, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// consume runs one connection lifetime: dial, ping loop, read loop.
func (l *Listener) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", l.url, err)
	}
	defer conn.Close()

	l.logger.Info("feed connected", slog.String("url", l.url))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read (%v): %w", err, domain.ErrWSDisconnect)
		}
		if !json.Valid(data) {
			l.logger.Warn("dropping malformed feed message", slog.Int("bytes", len(data)))
			continue
		}
		if err := l.bus.Publish(ctx, BatchChannel, data); err != nil {
			l.logger.Warn("publish batch failed", slog.String("error", err.Error()))
		}
	}
}
