package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	_ "venue-vote/docs"
	"venue-vote/internal/config"
	"venue-vote/internal/domain/recipient"
	"venue-vote/internal/domain/session"
	api "venue-vote/internal/http"
	"venue-vote/internal/live"
	"venue-vote/internal/metrics"
	"venue-vote/internal/notify"
	"venue-vote/internal/platform/database"
	"venue-vote/internal/platform/events"
	jwtpkg "venue-vote/internal/platform/jwt"
	"venue-vote/internal/platform/lock"
	"venue-vote/internal/repository/memory"
	"venue-vote/internal/repository/sqlstore"
	"venue-vote/internal/worker"
)

type store struct {
	sessions   session.Repository
	recipients recipient.Repository
	pinger     api.Pinger
	close      func() error
}

func openStore(ctx context.Context, cfg config.Config) (*store, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		sessions := memory.NewSessionRepo()
		return &store{
			sessions:   sessions,
			recipients: memory.NewRecipientRepo(),
			pinger:     sessions,
			close:      func() error { return nil },
		}, nil
	case config.DriverPostgres:
		db, err = database.NewPostgres(ctx, cfg.DB_DSN)
	default:
		db, err = database.NewSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := sqlstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	sessions := sqlstore.NewSessionRepo(db)
	return &store{
		sessions:   sessions,
		recipients: sqlstore.NewRecipientRepo(db),
		pinger:     sessions,
		close:      db.Close,
	}, nil
}

// @title           Venue Vote API
// @version         1.0
// @description     Group voting on where to eat, with timed reminders and winner announcements over Telegram and web push.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("store init error", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()
	slog.Info("store ready", "driver", cfg.StoreDriver)

	sessionSvc := session.NewService(st.sessions)
	recipientSvc := recipient.NewService(st.recipients)
	catalog := notify.NewCatalog(cfg.BaseURL)

	dispatcher := notify.NewDispatcher(cfg.DispatchTimeout, cfg.DispatchConcurrency)
	var tgSender *notify.TelegramSender
	if cfg.TelegramEnabled() {
		tgSender, err = notify.NewTelegramSender(cfg.TelegramBotToken, cfg.DispatchTimeout)
		if err != nil {
			slog.Error("telegram init error", "error", err)
			os.Exit(1)
		}
		dispatcher.Register(recipient.ChannelTelegram, tgSender)
	}
	if cfg.PushEnabled() {
		pushSender, err := notify.NewPushSender(notify.VAPIDConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
		}, cfg.DispatchTimeout)
		if err != nil {
			slog.Error("web push init error", "error", err)
			os.Exit(1)
		}
		dispatcher.Register(recipient.ChannelPush, pushSender)
	}
	if !dispatcher.Configured() {
		slog.Warn("no notification channel configured, sweeps will abort")
	}

	var locker lock.Locker = lock.NewMemory()
	if cfg.RedisURL != "" {
		rl, err := lock.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis init error", "error", err)
			os.Exit(1)
		}
		defer rl.Close()
		locker = rl
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		slog.Info("publishing session events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer publisher.Close()

	eventCh := make(chan events.Event, 256)
	eventWorker := worker.NewEventWorker(eventCh, publisher)
	workerDone := make(chan struct{})
	go func() {
		eventWorker.Run(ctx)
		close(workerDone)
	}()

	hub := live.NewHub()
	go hub.Run(ctx)

	scheduler := worker.NewScheduler(st.sessions, recipientSvc, dispatcher, catalog, locker, eventCh, worker.SchedulerConfig{
		Timeout:     cfg.SweepTimeout,
		Concurrency: cfg.SweepConcurrency,
	})
	if cfg.SchedulerInterval > 0 {
		go scheduler.Run(ctx, cfg.SchedulerInterval)
	}

	deps := api.Deps{
		Sessions:              sessionSvc,
		Recipients:            recipientSvc,
		Scheduler:             scheduler,
		Dispatcher:            dispatcher,
		Catalog:               catalog,
		JWT:                   jwtpkg.NewManager(cfg.JWTSecret, ""),
		Hub:                   hub,
		Events:                eventCh,
		Store:                 st.pinger,
		OperatorPasswordHash:  cfg.OperatorPasswordHash,
		TelegramWebhookSecret: cfg.TelegramWebhookSecret,
		VAPIDPublicKey:        cfg.VAPIDPublicKey,
		VoteRatePerMinute:     cfg.VoteRatePerMinute,
		VoteRateBurst:         cfg.VoteRateBurst,
	}
	if tgSender != nil {
		deps.Telegram = tgSender
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()
	<-workerDone

	slog.Info("server stopped")
}
