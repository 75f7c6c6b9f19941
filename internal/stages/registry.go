package stages

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Skyline/internal/domain"
)

// Factory создаёт адаптер для дескриптора стадии.
type Factory func(desc domain.StageDescriptor) (Adapter, error)

// Services — внешние сервисы, которые используют стандартные адаптеры.
// Nil-сервис допустим, пока не нужна стадия соответствующего типа.
type Services struct {
	Jobs     JobService
	Crawlers CrawlerService
	Stacks   StackService
}

// Registry — реестр фабрик адаптеров по типу стадии.
//
// Потокобезопасен. Адаптер создаётся на каждый run, поскольку хранит
// состояние запуска.
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.StageKind]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[domain.StageKind]Factory),
	}
}

// DefaultRegistry создаёт реестр со стандартными адаптерами поверх svc.
func DefaultRegistry(svc Services) *Registry {
	r := NewRegistry()

	r.Register(domain.StageKindInfraDeploy, func(d domain.StageDescriptor) (Adapter, error) {
		if svc.Stacks == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoService, d.Kind)
		}
		return NewStackAdapter(d, svc.Stacks), nil
	})
	r.Register(domain.StageKindETLJob, func(d domain.StageDescriptor) (Adapter, error) {
		if svc.Jobs == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoService, d.Kind)
		}
		return NewJobAdapter(d, svc.Jobs), nil
	})
	r.Register(domain.StageKindCatalogCrawler, func(d domain.StageDescriptor) (Adapter, error) {
		if svc.Crawlers == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoService, d.Kind)
		}
		return NewCrawlerAdapter(d, svc.Crawlers), nil
	})

	return r
}

// Register регистрирует фабрику. Существующая фабрика для kind перезаписывается.
func (r *Registry) Register(kind domain.StageKind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Build создаёт адаптер для дескриптора.
func (r *Registry) Build(desc domain.StageDescriptor) (Adapter, error) {
	r.mu.RLock()
	f, exists := r.factories[desc.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStageKind, desc.Kind)
	}
	return f(desc)
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(kind domain.StageKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[kind]
	return exists
}

// Kinds возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Kinds() []domain.StageKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.StageKind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
