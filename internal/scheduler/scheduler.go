// Package scheduler implementa el sweep recurrente que reconcilia el estado
// de dosis contra el reloj: expira regímenes vencidos, confirma pendientes
// cuya gracia terminó y detecta dosis perdidas.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/medications"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/logger"

	"github.com/robfig/cron/v3"
)

// cronSpec: cada 1 minuto. No se garantiza precisión sub-minuto.
const cronSpec = "* * * * *"

type Scheduler struct {
	meds  *medications.Service
	clock *clock.Clock
	log   logger.Logger
	now   func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
	ticks   int
}

func New(meds *medications.Service, clk *clock.Clock, log logger.Logger) *Scheduler {
	return &Scheduler{
		meds:  meds,
		clock: clk,
		log:   log,
		now:   clk.Now,
	}
}

// Init arranca el loop. Idempotente: la segunda llamada es un no-op.
// SkipIfStillRunning garantiza ticks no solapados: un tick lento hace que el
// siguiente se saltee, y el posterior lo recupera.
func (s *Scheduler) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	c := cron.New(
		cron.WithLocation(s.clock.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(cronSpec, func() {
		s.tick(context.Background())
	}); err != nil {
		return err
	}

	c.Start()
	s.cron = c
	s.started = true

	s.log.Info("scheduler started", map[string]any{
		"spec":     cronSpec,
		"timezone": s.clock.Location().String(),
	})
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.started = false

	s.log.Info("scheduler stopped", nil)
}

// tick ejecuta un sweep completo. Los errores de un medicamento no abortan
// el resto del barrido: se loguean y se sigue.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	s.ticks++
	n := s.ticks
	s.mu.Unlock()

	now := s.now()
	log := s.log.With(map[string]any{"tick": n})

	s.expireEnded(ctx, now, log)
	s.confirmPending(ctx, now, log)
	s.detectMissed(ctx, now, log)
}

// expireEnded borra medicamentos cuyo periodend quedó antes del inicio del
// día civil actual. Los que no tienen periodend nunca expiran.
func (s *Scheduler) expireEnded(ctx context.Context, now time.Time, log logger.Logger) {
	expired, err := s.meds.ExpiredBefore(ctx, s.clock.StartOfDayAt(now))
	if err != nil {
		log.Error("list expired medications", map[string]any{"err": err.Error()})
		return
	}

	for _, m := range expired {
		if err := s.meds.Expire(ctx, m); err != nil {
			log.Error("expire medication", map[string]any{
				"medication": m.ID,
				"err":        err.Error(),
			})
			continue
		}
		log.Info("medication expired", map[string]any{
			"medication": m.ID,
			"name":       m.Name,
		})
	}
}

func (s *Scheduler) confirmPending(ctx context.Context, now time.Time, log logger.Logger) {
	due, err := s.meds.PendingDue(ctx, now)
	if err != nil {
		log.Error("list pending doses", map[string]any{"err": err.Error()})
		return
	}

	for _, m := range due {
		updated, err := s.meds.ConfirmDose(ctx, m, now)
		if err != nil {
			if errors.Is(err, medications.ErrStaleDoseState) {
				// La API movió el estado entre el listado y la confirmación
				// (p. ej. el usuario canceló): no hay nada que confirmar.
				continue
			}
			log.Error("confirm dose", map[string]any{
				"medication": m.ID,
				"err":        err.Error(),
			})
			continue
		}
		log.Info("dose confirmed", map[string]any{
			"medication": m.ID,
			"name":       m.Name,
			"next_dose":  updated.HourNextDose,
		})
	}
}

func (s *Scheduler) detectMissed(ctx context.Context, now time.Time, log logger.Logger) {
	candidates, err := s.meds.MissedCandidates(ctx, now)
	if err != nil {
		log.Error("list missed candidates", map[string]any{"err": err.Error()})
		return
	}

	for _, m := range candidates {
		missed, err := s.meds.DetectMissed(ctx, m, now)
		if err != nil {
			if errors.Is(err, medications.ErrStaleDoseState) {
				continue
			}
			log.Error("detect missed dose", map[string]any{
				"medication": m.ID,
				"err":        err.Error(),
			})
			continue
		}
		if missed {
			log.Warn("dose missed", map[string]any{
				"medication": m.ID,
				"name":       m.Name,
			})
		}
	}
}
