package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartnagrik/backend/internal/api/handler"
	"smartnagrik/backend/internal/complaint"
	"smartnagrik/backend/internal/config"
	"smartnagrik/backend/internal/feed"
	"smartnagrik/backend/internal/georoute"
	"smartnagrik/backend/internal/localization"
	"smartnagrik/backend/internal/notify"
	"smartnagrik/backend/internal/numbering"
	"smartnagrik/backend/internal/proofstore"
	"smartnagrik/backend/internal/storage"
	"smartnagrik/backend/internal/telegram"

	"github.com/gin-gonic/gin"
)

func main() {
	if logFile := config.InitLogging(); logFile != nil {
		defer logFile.Close()
	}
	log.Println("INFO: starting Smart Nagrik Seva backend")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	db, err := config.OpenDB(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	rdb, err := config.OpenRedis(ctx, cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		log.Fatalf("ERROR: failed to run migrations: %v", err)
	}
	log.Println("INFO: database and redis connections established, migrations complete")

	// 2. Notification channels
	l := localization.NewDefault()
	texts := notify.Texts{Localizer: l}
	channels := []notify.Channel{
		&notify.InboxChannel{Store: s, Texts: texts},
		&notify.FeedChannel{Publisher: s},
	}
	if cfg.MailConfigured() {
		dialer := notify.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPInsecure)
		channels = append(channels, &notify.MailChannel{Sender: dialer, From: cfg.SMTPFrom, Texts: texts})
	} else {
		log.Println("WARN: SMTP is not configured, e-mail notifications are disabled")
	}

	var bot *telegram.BotService
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBotService(cfg.TelegramToken, nil, l)
		if err != nil {
			log.Printf("WARN: telegram bot disabled: %v", err)
		} else {
			channels = append(channels, &telegram.Notifier{Bot: bot.BotAPI, Texts: texts})
		}
	}
	dispatcher := notify.NewAsyncDispatcher(cfg.NotifyWorkers, cfg.NotifyQueueSize, channels...)

	// 3. Lifecycle engine
	router := georoute.NewRouter(s)
	numbers := numbering.NewGenerator(numbering.NewRedisSequence(rdb))
	svc := complaint.NewService(s, router, numbers, dispatcher)
	if err := svc.ReconcileNumbers(ctx, time.Now().UTC().Year()); err != nil {
		log.Printf("WARN: complaint number counter not reconciled: %v", err)
	}

	// 4. Background goroutines
	hub := feed.NewHub()
	go hub.Run(ctx)
	go hub.StartPubSubListener(ctx, s)
	if bot != nil {
		bot.Tracker = svc
		go bot.Run(ctx)
	}

	var proofs handler.ProofPresigner
	if cfg.S3Bucket != "" {
		store, err := proofstore.Connect(ctx, cfg.AWSRegion, cfg.AWSEndpoint, cfg.S3Bucket, cfg.ProofURLTTL)
		if err != nil {
			log.Printf("WARN: proof uploads disabled: %v", err)
		} else {
			proofs = store
		}
	}

	// 5. HTTP
	auth := handler.NewAuthenticator(cfg.JWTSecret, cfg.JWTTTL)
	h := handler.NewHandler(ctx, svc, s, router, hub, proofs, auth)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.Router(cfg.CORSOrigins),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("INFO: listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ERROR: http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("INFO: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: http shutdown: %v", err)
	}
	dispatcher.Close()
	if err := rdb.Close(); err != nil {
		log.Printf("WARN: redis close: %v", err)
	}
}
