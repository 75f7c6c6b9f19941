package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/telemetry"
)

// Default configuration values.
const (
	// MaxQueryErrors — сколько ошибок запроса статуса подряд допускается до poll_error.
	MaxQueryErrors = 3

	defaultInterval = 10 * time.Second
)

// CheckFunc запрашивает текущий сырой статус внешнего ресурса.
type CheckFunc func(ctx context.Context) (string, error)

// Classifier отображает сырой статус в success/failure/in_progress.
// domain.StatusMap удовлетворяет этому интерфейсу.
type Classifier interface {
	Classify(raw string) domain.Mapped
}

// Options — параметры ожидания.
type Options struct {
	// Interval — пауза между запросами статуса (default: 10s).
	Interval time.Duration

	// MaxWait — предельное время ожидания. 0 — без ограничения (только ctx).
	MaxWait time.Duration

	// MaxQueryErrors — допустимое число ошибок запроса подряд (default: MaxQueryErrors).
	MaxQueryErrors int

	// Label — метка для логов и метрик (обычно тип стадии).
	Label string

	// Logger
	Logger *slog.Logger
}

// Result — итог ожидания.
type Result struct {
	// Outcome — success, failure, timeout, poll_error или cancelled.
	Outcome domain.StageOutcome

	// RawStatus — последний наблюдённый сырой статус.
	RawStatus string

	// Polls — количество вызовов check.
	Polls int

	// Err — последняя ошибка запроса (для poll_error) или ошибка context.
	Err error

	// Elapsed — время ожидания.
	Elapsed time.Duration
}

// AwaitTerminal опрашивает check до терминального статуса или истечения MaxWait.
//
// Первый запрос выполняется сразу, следующие — через Interval.
// Ожидание между запросами — блокировка на таймере, без активного цикла.
// Ошибки самого запроса повторяются до MaxQueryErrors раз подряд, затем
// возвращается poll_error; это отличается от failure, о котором сообщает ресурс.
func AwaitTerminal(ctx context.Context, check CheckFunc, classifier Classifier, opts Options) Result {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	maxErrors := opts.MaxQueryErrors
	if maxErrors <= 0 {
		maxErrors = MaxQueryErrors
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()

	var deadline <-chan time.Time
	if opts.MaxWait > 0 {
		deadlineTimer := time.NewTimer(opts.MaxWait)
		defer deadlineTimer.Stop()
		deadline = deadlineTimer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var res Result
	queryErrors := 0

	finish := func(outcome domain.StageOutcome) Result {
		res.Outcome = outcome
		res.Elapsed = time.Since(start)
		return res
	}

	for {
		res.Polls++
		raw, err := check(ctx)

		if err != nil {
			if ctx.Err() != nil {
				res.Err = ctx.Err()
				return finish(domain.StageOutcomeCancelled)
			}

			queryErrors++
			res.Err = err
			telemetry.StatusQueries.WithLabelValues(opts.Label, "error").Inc()

			logger.Warn("status query failed",
				"label", opts.Label,
				"attempt", queryErrors,
				"max", maxErrors,
				"error", err,
			)

			if queryErrors >= maxErrors {
				return finish(domain.StageOutcomePollError)
			}
		} else {
			queryErrors = 0
			res.Err = nil
			telemetry.StatusQueries.WithLabelValues(opts.Label, "ok").Inc()

			if raw != res.RawStatus {
				logger.Debug("status changed", "label", opts.Label, "status", raw, "polls", res.Polls)
			}
			res.RawStatus = raw

			switch classifier.Classify(raw) {
			case domain.MappedSuccess:
				return finish(domain.StageOutcomeSuccess)
			case domain.MappedFailure:
				return finish(domain.StageOutcomeFailure)
			}
		}

		// Ждём следующий запрос, дедлайн или отмену
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			return finish(domain.StageOutcomeCancelled)
		case <-deadline:
			return finish(domain.StageOutcomeTimeout)
		case <-ticker.C:
		}
	}
}
