package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/event-lifecycle/internal/app"
	"github.com/richardliu001/event-lifecycle/internal/config"
	"github.com/richardliu001/event-lifecycle/internal/lifecycle"
	"github.com/richardliu001/event-lifecycle/internal/logger"
	"github.com/richardliu001/event-lifecycle/internal/service"
	httptransport "github.com/richardliu001/event-lifecycle/internal/transport/http"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. postgres, redis, rabbitmq, kafka
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	// 4. hook & service
	hook := lifecycle.NewHook(a.Repo, a.Scheduler, a.Dispatcher, log)
	svc := service.NewEventService(a.Repo, hook, log)

	// 5. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)

	// 6. serve
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	log.Infof("event-server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
}
