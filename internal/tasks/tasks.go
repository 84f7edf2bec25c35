// Package tasks wires the periodic pipeline work onto asynq. The scheduler
// interface is two operations — run once, run periodically — with the viral
// scan and cleanup registered as periodic entries beside the listener pass.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/outlier"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/scheduler"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types/interfaces"
)

// Task type names.
const (
	TypeListenerRun   = "listener:run"
	TypeViralScan     = "viral:scan"
	TypeViralCleanup  = "viral:cleanup"
	TypeProxyValidate = "proxy:validate"
)

// Handlers bundles the services the task mux dispatches to.
type Handlers struct {
	Scheduler *scheduler.Scheduler
	Detector  *outlier.Detector
	ProxyPool interfaces.ProxyPool
}

// NewMux builds the asynq mux with every task handler registered.
func NewMux(h *Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeListenerRun, h.handleListenerRun)
	mux.HandleFunc(TypeViralScan, h.handleViralScan)
	mux.HandleFunc(TypeViralCleanup, h.handleViralCleanup)
	mux.HandleFunc(TypeProxyValidate, h.handleProxyValidate)
	return mux
}

func runContext(ctx context.Context, task string) context.Context {
	return logger.WithFields(ctx, map[string]interface{}{
		"task":   task,
		"run_id": uuid.NewString(),
	})
}

func (h *Handlers) handleListenerRun(ctx context.Context, t *asynq.Task) error {
	ctx = runContext(ctx, TypeListenerRun)
	return h.Scheduler.RunOnce(ctx)
}

func (h *Handlers) handleViralScan(ctx context.Context, t *asynq.Task) error {
	ctx = runContext(ctx, TypeViralScan)
	result, err := h.Detector.Scan(ctx)
	if err != nil {
		return err
	}
	logger.Infof(ctx, "viral scan finished: status=%s found=%d upserted=%d",
		result.Status, result.OutliersFound, result.Upserted)
	return nil
}

func (h *Handlers) handleViralCleanup(ctx context.Context, t *asynq.Task) error {
	ctx = runContext(ctx, TypeViralCleanup)
	_, err := h.Detector.Cleanup(ctx)
	return err
}

func (h *Handlers) handleProxyValidate(ctx context.Context, t *asynq.Task) error {
	ctx = runContext(ctx, TypeProxyValidate)
	_, err := h.ProxyPool.ValidateAll(ctx)
	return err
}

// PeriodicEntries registers the recurring work: the listener pass at the
// given interval, the viral scan hourly, outlier cleanup daily, proxy
// revalidation every three hours.
func PeriodicEntries(s *asynq.Scheduler, listenerIntervalMin int) error {
	entries := []struct {
		spec string
		task *asynq.Task
	}{
		{fmt.Sprintf("@every %dm", listenerIntervalMin), asynq.NewTask(TypeListenerRun, nil)},
		{"@every 1h", asynq.NewTask(TypeViralScan, nil)},
		{"@every 24h", asynq.NewTask(TypeViralCleanup, nil)},
		{"@every 3h", asynq.NewTask(TypeProxyValidate, nil)},
	}
	for _, e := range entries {
		if _, err := s.Register(e.spec, e.task, asynq.MaxRetry(0), asynq.Timeout(2*time.Hour)); err != nil {
			return fmt.Errorf("register %s: %w", e.task.Type(), err)
		}
	}
	return nil
}
