package router

import (
	"net/http"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/history"
	"github.com/lucasatdriano/LembraMed-Server/internal/domain/medications"
	"github.com/lucasatdriano/LembraMed-Server/internal/domain/notifications"
	"github.com/lucasatdriano/LembraMed-Server/internal/middleware"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
	"github.com/lucasatdriano/LembraMed-Server/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options recibe los services ya armados. El wiring de repos vive en main,
// porque el scheduler comparte los mismos services que el router.
type Options struct {
	Medications   *medications.Service
	History       *history.Service
	Notifications *notifications.Service

	Clock *clock.Clock

	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Rutas por módulo
	medications.RegisterRoutes(r, opts.Medications)
	history.RegisterRoutes(r, opts.History, opts.Medications, opts.Clock)
	notifications.RegisterRoutes(r, opts.Notifications)

	return r
}
