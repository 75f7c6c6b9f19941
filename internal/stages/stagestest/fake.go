// Package stagestest содержит управляемые in-memory реализации внешних
// сервисов стадий для тестов.
package stagestest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/Skyline/internal/stages"
)

// script выдаёт статусы по порядку; последний повторяется.
type script struct {
	statuses []string
	pos      int
}

func (s *script) next() string {
	if len(s.statuses) == 0 {
		return ""
	}
	st := s.statuses[s.pos]
	if s.pos < len(s.statuses)-1 {
		s.pos++
	}
	return st
}

// Jobs — fake JobService.
type Jobs struct {
	mu sync.Mutex

	// Statuses — последовательность статусов для каждого job'а.
	Statuses map[string][]string

	// StartErr — ошибка StartJobRun для job'а.
	StartErr map[string]error

	scripts map[string]*script
	starts  map[string]int
	polls   map[string]int
}

// NewJobs создаёт fake с заданными последовательностями статусов.
func NewJobs(statuses map[string][]string) *Jobs {
	return &Jobs{
		Statuses: statuses,
		StartErr: make(map[string]error),
		scripts:  make(map[string]*script),
		starts:   make(map[string]int),
		polls:    make(map[string]int),
	}
}

func (j *Jobs) StartJobRun(_ context.Context, job string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.StartErr[job]; err != nil {
		return "", err
	}
	j.starts[job]++
	j.scripts[job] = &script{statuses: j.Statuses[job]}
	return fmt.Sprintf("jr_%s_%d", job, j.starts[job]), nil
}

func (j *Jobs) JobRunStatus(_ context.Context, job, _ string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.polls[job]++
	s, ok := j.scripts[job]
	if !ok {
		return "", fmt.Errorf("job %s not started", job)
	}
	return s.next(), nil
}

// Starts возвращает количество успешных запусков job'а.
func (j *Jobs) Starts(job string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.starts[job]
}

// Polls возвращает количество запросов статуса job'а.
func (j *Jobs) Polls(job string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.polls[job]
}

// PreviousCrawlAt — время начала обхода, выполненного до теста.
var PreviousCrawlAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Crawlers — fake CrawlerService.
//
// Каждый crawler после запуска проходит StaleFirst опросов в READY с итогом
// прошлого обхода, затем Running опросов в RUNNING, затем возвращается в READY
// с итогом Last. Время обхода берётся по часам сервиса (time.Now + ClockSkew).
type Crawlers struct {
	mu sync.Mutex

	// Running — число опросов в состоянии RUNNING после старта.
	Running map[string]int

	// Last — итог обхода после возврата в READY.
	Last map[string]string

	// AlreadyRunning — StartCrawler сообщит, что crawler уже запущен.
	AlreadyRunning map[string]bool

	// StartErr — ошибка StartCrawler.
	StartErr map[string]error

	// StaleFirst — первые N опросов после старта crawler ещё в READY с итогом прошлого обхода.
	StaleFirst map[string]int

	// PreviousLast — итог обхода, выполненного до первого запуска (время PreviousCrawlAt).
	PreviousLast map[string]string

	// ClockSkew — сдвиг часов сервиса относительно локальных.
	ClockSkew time.Duration

	// NoTimestamps — сервис не сообщает время обхода.
	NoTimestamps bool

	state  map[string]*crawlerRun
	done   map[string]crawl
	starts map[string]int
}

type crawl struct {
	status    string
	startedAt time.Time
}

type crawlerRun struct {
	startedAt time.Time
	prev      crawl
	polls     int
}

// NewCrawlers создаёт fake, в котором каждый crawler завершается итогом из last.
func NewCrawlers(last map[string]string) *Crawlers {
	if last == nil {
		last = make(map[string]string)
	}
	return &Crawlers{
		Running:        make(map[string]int),
		Last:           last,
		AlreadyRunning: make(map[string]bool),
		StartErr:       make(map[string]error),
		StaleFirst:     make(map[string]int),
		PreviousLast:   make(map[string]string),
		state:          make(map[string]*crawlerRun),
		done:           make(map[string]crawl),
		starts:         make(map[string]int),
	}
}

func (c *Crawlers) StartCrawler(_ context.Context, name string) (stages.CrawlerStart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.StartErr[name]; err != nil {
		return 0, err
	}
	c.starts[name]++
	c.state[name] = &crawlerRun{
		startedAt: time.Now().Add(c.ClockSkew),
		prev:      c.lastCrawl(name),
	}
	if c.AlreadyRunning[name] {
		return stages.CrawlerAlreadyRunning, nil
	}
	return stages.CrawlerStarted, nil
}

func (c *Crawlers) CrawlerStatus(_ context.Context, name string) (stages.CrawlerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.state[name]
	if !ok {
		return c.idle(c.lastCrawl(name)), nil
	}
	run.polls++

	if run.polls <= c.StaleFirst[name] {
		return c.idle(run.prev), nil
	}
	if run.polls-c.StaleFirst[name] <= c.Running[name] {
		return stages.CrawlerState{State: "RUNNING"}, nil
	}

	finished := crawl{status: c.Last[name], startedAt: run.startedAt}
	c.done[name] = finished
	return c.idle(finished), nil
}

// lastCrawl возвращает последний завершённый обход crawler'а.
func (c *Crawlers) lastCrawl(name string) crawl {
	if d, ok := c.done[name]; ok {
		return d
	}
	if prev := c.PreviousLast[name]; prev != "" {
		return crawl{status: prev, startedAt: PreviousCrawlAt}
	}
	return crawl{}
}

func (c *Crawlers) idle(last crawl) stages.CrawlerState {
	st := stages.CrawlerState{State: "READY", LastCrawl: last.status}
	if !c.NoTimestamps {
		st.LastCrawlStartedAt = last.startedAt
	}
	return st
}

// Starts возвращает количество вызовов StartCrawler для crawler'а.
func (c *Crawlers) Starts(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts[name]
}

// TotalStarts возвращает суммарное количество запусков всех crawler'ов.
func (c *Crawlers) TotalStarts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.starts {
		n += v
	}
	return n
}

// Stacks — fake StackService.
type Stacks struct {
	mu sync.Mutex

	// NoChanges — UpdateStack ответит "нет изменений".
	NoChanges map[string]bool

	// UpdateErrs — ошибки UpdateStack по порядку вызовов; nil — успех.
	UpdateErrs map[string][]error

	// Statuses — последовательность статусов стека после обновления.
	Statuses map[string][]string

	scripts map[string]*script
	updates map[string]int
}

// NewStacks создаёт пустой fake.
func NewStacks() *Stacks {
	return &Stacks{
		NoChanges:  make(map[string]bool),
		UpdateErrs: make(map[string][]error),
		Statuses:   make(map[string][]string),
		scripts:    make(map[string]*script),
		updates:    make(map[string]int),
	}
}

func (s *Stacks) UpdateStack(_ context.Context, name string) (stages.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.updates[name]
	s.updates[name]++

	if errs := s.UpdateErrs[name]; n < len(errs) && errs[n] != nil {
		return stages.UpdateResult{}, errs[n]
	}
	if s.NoChanges[name] {
		return stages.UpdateResult{Changed: false, StackID: "stack/" + name}, nil
	}
	s.scripts[name] = &script{statuses: s.Statuses[name]}
	return stages.UpdateResult{Changed: true, StackID: "stack/" + name}, nil
}

func (s *Stacks) StackStatus(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scripts[name]
	if !ok {
		return "", fmt.Errorf("stack %s not updated", name)
	}
	return sc.next(), nil
}

// Updates возвращает количество вызовов UpdateStack.
func (s *Stacks) Updates(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[name]
}
