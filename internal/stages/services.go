package stages

import (
	"context"
	"time"
)

// JobService — внешний сервис ETL job'ов.
type JobService interface {
	// StartJobRun запускает job и возвращает id запуска.
	StartJobRun(ctx context.Context, job string) (string, error)

	// JobRunStatus возвращает сырой статус запуска.
	JobRunStatus(ctx context.Context, job, runID string) (string, error)
}

// CrawlerStart — результат запроса на запуск crawler'а.
type CrawlerStart int

const (
	CrawlerStarted CrawlerStart = iota
	CrawlerAlreadyRunning
)

// CrawlerState — снимок состояния crawler'а.
type CrawlerState struct {
	// State — текущее состояние: READY, RUNNING, STOPPING.
	State string

	// LastCrawl — статус последнего завершённого обхода: SUCCEEDED, FAILED, CANCELLED.
	// Пусто, если обходов не было.
	LastCrawl string

	// LastCrawlStartedAt — время начала последнего обхода. Zero, если обходов не было.
	LastCrawlStartedAt time.Time
}

// CrawlerService — внешний сервис crawler'ов каталога.
type CrawlerService interface {
	StartCrawler(ctx context.Context, name string) (CrawlerStart, error)
	CrawlerStatus(ctx context.Context, name string) (CrawlerState, error)
}

// UpdateResult — результат запроса на обновление стека.
type UpdateResult struct {
	// Changed — false, если сервис ответил "нет изменений".
	Changed bool

	// StackID — идентификатор стека, если сервис его вернул.
	StackID string
}

// StackService — внешний сервис развёртывания инфраструктуры.
type StackService interface {
	UpdateStack(ctx context.Context, name string) (UpdateResult, error)
	StackStatus(ctx context.Context, name string) (string, error)
}
