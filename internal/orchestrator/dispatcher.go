package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/mq"
)

// Dispatcher раздаёт trigger events контроллерам всех pipeline.
type Dispatcher struct {
	controllers map[string]*Controller
	names       []string
	logger      *slog.Logger
}

// NewDispatcher создаёт Dispatcher для набора контроллеров.
func NewDispatcher(logger *slog.Logger, ctrls ...*Controller) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		controllers: make(map[string]*Controller, len(ctrls)),
		logger:      logger,
	}
	for _, c := range ctrls {
		if _, exists := d.controllers[c.Name()]; !exists {
			d.names = append(d.names, c.Name())
		}
		d.controllers[c.Name()] = c
	}
	sort.Strings(d.names)
	return d
}

// Dispatch передаёт событие каждому контроллеру и возвращает их решения.
// Ошибки контроллеров объединяются; решения остальных всё равно возвращаются.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.TriggerEvent) ([]Decision, error) {
	decisions := make([]Decision, 0, len(d.names))
	var errs []error

	for _, name := range d.names {
		decision, err := d.controllers[name].Submit(ctx, ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("pipeline %s: %w", name, err))
			continue
		}
		decisions = append(decisions, decision)
	}

	return decisions, errors.Join(errs...)
}

// Trigger запускает run конкретного pipeline (ручной запуск или расписание).
func (d *Dispatcher) Trigger(ctx context.Context, pipeline string, ev domain.TriggerEvent) (Decision, error) {
	c, ok := d.controllers[pipeline]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownPipeline, pipeline)
	}
	return c.Submit(ctx, ev)
}

// Controller возвращает контроллер по имени pipeline.
func (d *Dispatcher) Controller(name string) (*Controller, bool) {
	c, ok := d.controllers[name]
	return c, ok
}

// Controllers возвращает контроллеры в порядке имён pipeline.
func (d *Dispatcher) Controllers() []*Controller {
	out := make([]*Controller, 0, len(d.names))
	for _, name := range d.names {
		out = append(out, d.controllers[name])
	}
	return out
}

// HandleMessage — mq.Handler для очереди events.storage.
//
// Непригодное сообщение подтверждается без обработки: повторная доставка
// его не исправит. Ошибка возвращается (nack с повторной доставкой) только
// если ни один pipeline не создал run, см. Redeliverable.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg.Type != mq.MessageTypeStorageEvent {
		d.logger.Warn("unexpected message type", "type", msg.Type, "message_id", msg.ID)
		return nil
	}

	payload, err := mq.ParsePayload[mq.StorageEventPayload](msg)
	if err != nil {
		d.logger.Warn("malformed storage event", "message_id", msg.ID, "error", err)
		return nil
	}

	decisions, err := d.Dispatch(ctx, payload.Event())
	for _, dec := range decisions {
		d.logger.Debug("storage event dispatched",
			"pipeline", dec.Pipeline,
			"decision", dec.Kind,
			"reason", dec.Reason,
			"run_id", dec.RunID,
		)
	}
	if err != nil && !Redeliverable(decisions, err) {
		d.logger.Warn("storage event partially dispatched, not redelivering",
			"message_id", msg.ID,
			"source_location", payload.SourceLocation,
			"error", err,
		)
		return nil
	}
	return err
}

// Stop останавливает все контроллеры.
func (d *Dispatcher) Stop() {
	for _, c := range d.Controllers() {
		c.Stop()
	}
}

// Wait ждёт завершения фоновых runs всех контроллеров.
func (d *Dispatcher) Wait() {
	for _, c := range d.Controllers() {
		c.Wait()
	}
}
