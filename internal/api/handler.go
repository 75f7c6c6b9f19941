package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/orchestrator"
	"github.com/shaiso/Skyline/internal/repo"
)

// RunReader — чтение Run Record. repo.RunRepo и repo.MemoryRunStore удовлетворяют интерфейсу.
type RunReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	ListDropped(ctx context.Context, pipeline string, limit int) ([]domain.DroppedTrigger, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs       RunReader
	dispatcher *orchestrator.Dispatcher
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs       RunReader
	Dispatcher *orchestrator.Dispatcher
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runs:       cfg.Runs,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
	}
}
