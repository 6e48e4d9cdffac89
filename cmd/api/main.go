package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lucasatdriano/LembraMed-Server/internal/adapters/auth/jwtauth"
	mem "github.com/lucasatdriano/LembraMed-Server/internal/adapters/storage/memory"
	pg "github.com/lucasatdriano/LembraMed-Server/internal/adapters/storage/postgres"
	wpush "github.com/lucasatdriano/LembraMed-Server/internal/adapters/push/webpush"
	"github.com/lucasatdriano/LembraMed-Server/internal/domain/history"
	"github.com/lucasatdriano/LembraMed-Server/internal/domain/medications"
	"github.com/lucasatdriano/LembraMed-Server/internal/domain/notifications"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/httpclient"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/logger"
	"github.com/lucasatdriano/LembraMed-Server/internal/ports/auth"
	"github.com/lucasatdriano/LembraMed-Server/internal/ports/push"
	"github.com/lucasatdriano/LembraMed-Server/internal/router"
	"github.com/lucasatdriano/LembraMed-Server/internal/scheduler"
)

func main() {
	// .env es opcional; en deploy las vars vienen del entorno.
	_ = godotenv.Load()

	log := logger.NewFromEnv()

	clk, err := clock.NewFromEnv()
	if err != nil {
		log.Error("invalid timezone", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	var (
		medsRepo  medications.Repository
		histRepo  history.Repository
		notifRepo notifications.Repository
	)

	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		db, err := pg.Open(dsn)
		if err != nil {
			log.Error("postgres connection failed", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
		defer db.Close()

		medsRepo = pg.NewMedicationsRepo(db)
		histRepo = pg.NewHistoryRepo(db)
		notifRepo = pg.NewNotificationsRepo(db)
		log.Info("storage: postgres", nil)
	} else {
		medsRepo = mem.NewMedicationsRepo()
		histRepo = mem.NewHistoryRepo()
		notifRepo = mem.NewNotificationsRepo()
		log.Warn("storage: in-memory (no DB_DSN set)", nil)
	}

	histSvc := history.NewService(histRepo, clk)
	medsSvc := medications.NewService(medsRepo, histSvc, clk)
	notifSvc := notifications.NewService(notifRepo, pushSender(log), clk)

	var verifier auth.AuthVerifier
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		verifier = jwtauth.NewVerifier(secret)
	} else {
		log.Warn("no JWT_SECRET set, running in dev auth mode", nil)
	}

	sched := scheduler.New(medsSvc, clk, log)
	if err := sched.Init(); err != nil {
		log.Error("scheduler init failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	r := router.NewRouter(router.Options{
		Medications:   medsSvc,
		History:       histSvc,
		Notifications: notifSvc,
		Clock:         clk,
		AuthVerifier:  verifier,
	})

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", map[string]any{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", nil)
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", map[string]any{"err": err.Error()})
	}
}

// pushSender arma el sender Web Push si hay claves VAPID; si no, devuelve
// un no-op para que el resto del server funcione sin push.
func pushSender(log logger.Logger) push.Sender {
	cfg := wpush.Config{
		Subject:    os.Getenv("VAPID_SUBJECT"),
		PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
	}

	sender, err := wpush.NewSender(cfg, httpclient.New(httpclient.DefaultTimeout))
	if err != nil {
		log.Warn("web push disabled", map[string]any{"reason": err.Error()})
		return noopSender{}
	}
	return sender
}

type noopSender struct{}

func (noopSender) Send(ctx context.Context, sub push.Subscription, payload []byte) error {
	return nil
}
