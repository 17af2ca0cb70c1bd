// helpdesk-watch logs into the helpdesk backend, subscribes to the
// notification stream and maintains a live list of open tickets, logging
// every change. It exists mostly as a working example of wiring the client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"

	helpdesk "github.com/YagoMoreiraDev/projeto-helpdesk"
	"github.com/YagoMoreiraDev/projeto-helpdesk/config"
	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
	"github.com/YagoMoreiraDev/projeto-helpdesk/logger"
	"github.com/YagoMoreiraDev/projeto-helpdesk/reconcile"
	"github.com/YagoMoreiraDev/projeto-helpdesk/stream"
)

// credentials are read separately from the client config so the SDK itself
// never handles raw login input outside an explicit Login call.
type credentials struct {
	Email  string `env:"HELPDESK_EMAIL,required"`
	Secret string `env:"HELPDESK_SECRET,required"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	creds := credentials{}
	if err := env.Parse(&creds); err != nil {
		return fmt.Errorf("parse credentials: %w", err)
	}

	log := logger.New("helpdesk-watch", cfg.LogLevel)
	log.Info("starting watcher",
		slog.String("api", cfg.APIBaseURL),
		slog.String("environment", cfg.Environment),
	)

	client, err := helpdesk.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := client.Login(ctx, creds.Email, creds.Secret); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	user := client.CurrentUser()
	log.Info("logged in",
		slog.String("user", user.DisplayName),
		slog.Any("roles", user.Roles),
	)

	// Snapshot first, then fold pushed deltas into it.
	open, err := client.Tickets().Open(ctx)
	if err != nil {
		return fmt.Errorf("fetch open tickets: %w", err)
	}
	open = reconcile.DedupByKey(open, reconcile.TicketKey)
	log.Info("initial snapshot", slog.Int("open_tickets", len(open)))

	events, cancelEvents := client.Subscribe()
	defer cancelEvents()
	states, cancelStates := client.StreamStates()
	defer cancelStates()

	client.Connect(ctx)
	defer client.Close()

	isOpen := func(t domain.Ticket) bool { return t.Status == domain.StatusOpen }

	for {
		select {
		case <-ctx.Done():
			log.Info("watcher stopped")
			return nil

		case change := <-states:
			if change.Err != nil {
				log.Warn("stream state",
					slog.String("state", change.State),
					slog.String("error", change.Err.Error()),
				)
				if change.State == stream.StateDisconnected {
					return fmt.Errorf("stream terminated: %w", change.Err)
				}
				continue
			}
			log.Info("stream state", slog.String("state", change.State))

		case ev := <-events:
			before := len(open)
			open = reconcile.ApplyEvent(open, *ev.Payload, isOpen, reconcile.TicketKey)
			log.Info("event applied",
				slog.String("type", ev.Type),
				slog.String("ticket_id", ev.Payload.ID),
				slog.String("status", ev.Payload.Status),
				slog.Int("open_before", before),
				slog.Int("open_after", len(open)),
			)
		}
	}
}
