package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/event-lifecycle/internal/app"
	"github.com/richardliu001/event-lifecycle/internal/config"
	"github.com/richardliu001/event-lifecycle/internal/logger"
	"github.com/richardliu001/event-lifecycle/internal/reminder"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "event-poller",
		Usage: "Deliver due event reminders.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "internal/config/config.yaml", Usage: "Path to the YAML config file."},
			&cli.BoolFlag{Name: "once", Usage: "Deliver one batch of due reminders and exit."},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	consumer := reminder.NewConsumer(a.Repo, a.Scheduler, a.Dispatcher, cfg.Poller.Batch, log)

	if c.Bool("once") {
		n, err := consumer.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("deliver reminders: %w", err)
		}
		log.Infof("delivered %d reminders", n)
		return nil
	}
	return consumer.Run(ctx, cfg.Poller.Interval)
}
