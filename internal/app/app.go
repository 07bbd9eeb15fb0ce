// Package app wires the infrastructure shared by the server and the poller.
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/event-lifecycle/internal/broker"
	"github.com/richardliu001/event-lifecycle/internal/config"
	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/richardliu001/event-lifecycle/internal/notify"
	"github.com/richardliu001/event-lifecycle/internal/reminder"
	"github.com/richardliu001/event-lifecycle/internal/repo"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// App holds the long-lived clients and the components built on them.
type App struct {
	Repo       *repo.Repository
	Scheduler  *reminder.Scheduler
	Dispatcher *notify.Dispatcher

	closers []func() error
	log     *zap.SugaredLogger
}

// Open connects to postgres, redis, rabbitmq and kafka and builds the
// notification pipeline. Close releases everything Open acquired.
func Open(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	a := &App{log: log}

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := gdb.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	conn, err := broker.Dial(ctx, cfg.RabbitMQ.URL, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)
	pub, err := broker.NewPublisher(conn, cfg.RabbitMQ.Exchange)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, pub.Close)

	kw := broker.NewPushWriter(cfg.Kafka.Brokers, cfg.Kafka.PushTopic)
	a.closers = append(a.closers, kw.Close)

	a.Repo = repo.NewRepository(gdb, rdb, log)
	a.Scheduler = reminder.NewScheduler(a.Repo, cfg.Reminders, log)
	a.Dispatcher = notify.NewDispatcher(cfg.Notify.ChannelTimeout, log,
		notify.NewEmailChannel(pub),
		notify.NewSmsChannel(pub),
		notify.NewPushChannel(a.Repo, kw),
	)
	return a, nil
}

// Close releases clients in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warnf("close: %v", err)
		}
	}
	a.closers = nil
}
