package main

import (
	"context"
	"strings"

	"go.uber.org/zap"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/obs/retry"
	outboxsvc "github.com/NordCoder/Farewatch/internal/outbox"
	"github.com/NordCoder/Farewatch/internal/repository/kafka"
	pg "github.com/NordCoder/Farewatch/internal/repository/postgres"
	"github.com/NordCoder/Farewatch/internal/services/notifier"
)

// initNotifier builds the dispatcher with the log sink, every enabled
// external sink and the extra sinks passed in.
// With the postgres backend and the outbox enabled, Kafka delivery goes
// through the alert_outbox table and a relay runner started on ctx.
func initNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger, storage *storageHandle, extra ...notification.Sink) (*notifier.Dispatcher, func(), error) {
	nc := cfg.Notify
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	d := notifier.New(logger, notifier.Options{
		Permission: notification.ParsePermission(nc.Permission),
		IconURL:    nc.IconURL,
		ClickURL:   strings.TrimRight(cfg.Server.PublicURL, "/") + "/",
	}, notifier.NewLogSink(logger))

	for _, s := range extra {
		d.AddSink(s)
	}
	if nc.Email.Enable {
		d.AddSink(notifier.NewEmailSink(notifier.NewMailer(nc.Email, logger), nc.Email.To))
	}
	if nc.Webhook.Enable {
		d.AddSink(notifier.NewWebhookSink(nc.Webhook.URL, nc.Webhook.Timeout))
	}
	if nc.Telegram.Enable {
		tg, err := notifier.NewTelegramSink(nc.Telegram.Token, nc.Telegram.ChatID)
		if err != nil {
			return nil, closeAll, err
		}
		d.AddSink(tg)
	}
	if nc.Kafka.Enable {
		p := kafka.BootstrapProducer(ctx, nc.Kafka.Brokers, nc.Kafka.Topic, logger)
		closers = append(closers, func() { _ = p.Close() })
		events := kafka.NewDealEvents(p)

		if ob := nc.Kafka.Outbox; ob.Enable && storage.db != nil {
			repo := pg.NewOutboxRepo(storage.db)
			runner := outboxsvc.NewRunner(logger, repo,
				outboxsvc.MakeGlobalHandler(events, retry.RelayPolicy(logger)),
				outboxsvc.Options{
					Workers:       ob.Workers,
					BatchSize:     ob.BatchSize,
					WaitTime:      ob.WaitTime,
					InProgressTTL: ob.InProgressTTL,
					Retention:     ob.Retention,
				})
			done := make(chan struct{})
			go func() {
				defer close(done)
				runner.Run(ctx)
			}()
			// the relay stops with ctx; wait for it before closing the producer
			closers = append([]func(){func() { <-done }}, closers...)
			d.AddSink(outboxsvc.NewSink(repo, events.Name()))
		} else {
			d.AddSink(events)
		}
	}

	logger.Info("notification sinks", zap.Strings("sinks", d.Sinks()), zap.String("permission", string(d.Permission())))
	return d, closeAll, nil
}
