package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Skyline/internal/domain"
)

// CrawlerAdapter — стадия catalog-crawler.
//
// Статус составной: для активного crawler'а — его состояние (RUNNING, STOPPING),
// для простаивающего — "READY/<итог последнего обхода>".
//
// Сервис каталога может вернуться из StartCrawler до того, как состояние уйдёт
// из READY. В этот момент "последний обход" — это ещё прошлый запуск. Поэтому
// перед стартом запоминается снимок последнего обхода, и пока RUNNING не
// наблюдался, а последний обход совпадает со снимком по времени начала,
// статус сообщается как READY/PENDING (in_progress). Сравниваются только
// времена сервиса, локальные часы не участвуют. Если сервис не отдаёт время
// обхода, статус классифицируется по итогу последнего обхода.
type CrawlerAdapter struct {
	desc     domain.StageDescriptor
	crawlers CrawlerService

	started    bool
	ownStart   bool
	sawRunning bool

	// baseline — последний обход до нашего старта. Nil, если снимок не получен.
	baseline *CrawlerState
}

// NewCrawlerAdapter создаёт адаптер crawler'а.
func NewCrawlerAdapter(desc domain.StageDescriptor, crawlers CrawlerService) *CrawlerAdapter {
	return &CrawlerAdapter{
		desc:     withDefaults(desc),
		crawlers: crawlers,
	}
}

func (a *CrawlerAdapter) Descriptor() domain.StageDescriptor { return a.desc }

// Start запускает crawler. "Уже запущен" — успешный старт: ждём текущий обход.
//
// 1. Снимок последнего обхода (ошибка снимка не мешает старту)
// 2. StartCrawler
func (a *CrawlerAdapter) Start(ctx context.Context) (StartResult, error) {
	a.baseline = nil
	if st, err := a.crawlers.CrawlerStatus(ctx, a.desc.Name); err == nil {
		a.baseline = &st
	}

	res, err := a.crawlers.StartCrawler(ctx, a.desc.Name)
	if err != nil {
		return StartResult{}, fmt.Errorf("start crawler %s: %w", a.desc.Name, err)
	}

	a.started = true
	a.sawRunning = false

	if res == CrawlerAlreadyRunning {
		a.ownStart = false
		return StartResult{Kind: StartAlreadyRunning}, nil
	}
	a.ownStart = true
	return StartResult{Kind: StartOK}, nil
}

func (a *CrawlerAdapter) Status(ctx context.Context) (string, error) {
	if !a.started {
		return "", ErrNotStarted
	}

	st, err := a.crawlers.CrawlerStatus(ctx, a.desc.Name)
	if err != nil {
		return "", err
	}

	state := domain.NormalizeStatus(st.State)
	switch state {
	case crawlerRunning, crawlerStopping:
		a.sawRunning = true
		return state, nil
	case crawlerReady, "IDLE":
	default:
		return state, nil
	}

	last := domain.NormalizeStatus(st.LastCrawl)
	if last == "" {
		last = crawlerUndefined
	}

	if a.stale(st) {
		last = crawlerPending
	}

	return crawlerReady + "/" + last, nil
}

// stale сообщает, что простаивающий crawler ещё показывает обход до нашего старта.
func (a *CrawlerAdapter) stale(st CrawlerState) bool {
	if !a.ownStart || a.sawRunning || a.baseline == nil {
		return false
	}
	// Без времени обхода отличить прошлый обход от нового нельзя
	if st.LastCrawlStartedAt.IsZero() {
		return false
	}
	return st.LastCrawlStartedAt.Equal(a.baseline.LastCrawlStartedAt)
}

func (a *CrawlerAdapter) Classify(raw string) domain.Mapped {
	return classify(a.desc.TerminalStates, raw, nil)
}
