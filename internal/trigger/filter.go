package trigger

import (
	"strings"

	"github.com/shaiso/Skyline/internal/domain"
)

// Причины отклонения события.
const (
	ReasonAccepted      = ""
	ReasonEmptyLocation = "empty_location"
	ReasonDirectory     = "directory_marker"
	ReasonOwnOutput     = "own_output"
	ReasonExcluded      = "excluded_prefix"
	ReasonNotIncluded   = "not_included"
	ReasonBucket        = "bucket_mismatch"
	ReasonEventType     = "event_type"
)

// DefaultEventTypes — типы событий создания объекта, которые принимаются по умолчанию.
var DefaultEventTypes = []string{"put", "post", "copy", "completemultipartupload"}

// FilterConfig — политика фильтра для одного pipeline.
type FilterConfig struct {
	// Bucket — bucket с входными данными. Пусто — bucket не проверяется.
	Bucket string

	// OutputPrefixes — куда пишет сам pipeline (silver/, gold/).
	OutputPrefixes []string

	// ExcludePrefixes — не-данные: код, скрипты (scripts/).
	ExcludePrefixes []string

	// IncludePrefixes — если задано, принимаются только события под этими префиксами (raw/).
	IncludePrefixes []string

	// EventTypes — допустимые типы событий (default: DefaultEventTypes).
	EventTypes []string
}

// Filter — Trigger Filter. Неизменяем после создания, безопасен для горутин.
type Filter struct {
	bucket     string
	outputs    []string
	excluded   []string
	included   []string
	eventTypes map[string]bool
}

// NewFilter создаёт фильтр.
func NewFilter(cfg FilterConfig) *Filter {
	types := cfg.EventTypes
	if len(types) == 0 {
		types = DefaultEventTypes
	}

	f := &Filter{
		bucket:     cfg.Bucket,
		outputs:    normalizePrefixes(cfg.OutputPrefixes),
		excluded:   normalizePrefixes(cfg.ExcludePrefixes),
		included:   normalizePrefixes(cfg.IncludePrefixes),
		eventTypes: make(map[string]bool, len(types)),
	}
	for _, t := range types {
		f.eventTypes[NormalizeEventType(t)] = true
	}
	return f
}

// ShouldAccept возвращает решение и причину отклонения.
//
// Ручные события обходят проверки пути и типа: их источник не хранилище.
func (f *Filter) ShouldAccept(ev domain.TriggerEvent) (bool, string) {
	if ev.Manual {
		return true, ReasonAccepted
	}

	key := strings.TrimLeft(strings.TrimSpace(ev.SourceLocation), "/")
	if key == "" {
		return false, ReasonEmptyLocation
	}
	if strings.HasSuffix(key, "/") {
		return false, ReasonDirectory
	}

	if f.bucket != "" && ev.Bucket != "" && ev.Bucket != f.bucket {
		return false, ReasonBucket
	}

	// Собственные выходы проверяются первыми
	if underAny(key, f.outputs) {
		return false, ReasonOwnOutput
	}
	if underAny(key, f.excluded) {
		return false, ReasonExcluded
	}
	if len(f.included) > 0 && !underAny(key, f.included) {
		return false, ReasonNotIncluded
	}

	if !f.eventTypes[NormalizeEventType(ev.EventType)] {
		return false, ReasonEventType
	}

	return true, ReasonAccepted
}

// Accepts — ShouldAccept без причины.
func (f *Filter) Accepts(ev domain.TriggerEvent) bool {
	ok, _ := f.ShouldAccept(ev)
	return ok
}

// NormalizeEventType приводит тип события к короткой форме:
// "s3:ObjectCreated:Put" → "put", "ObjectCreated:CompleteMultipartUpload" → "completemultipartupload".
func NormalizeEventType(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.LastIndex(t, ":"); i >= 0 {
		t = t[i+1:]
	}
	return strings.ToLower(t)
}

// normalizePrefixes убирает ведущий '/' и гарантирует завершающий:
// префикс всегда означает каталог.
func normalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		out = append(out, p+"/")
	}
	return out
}

// underAny проверяет, лежит ли key внутри одного из каталогов.
// "silver" (без '/') тоже считается под "silver/".
func underAny(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) || key+"/" == p {
			return true
		}
	}
	return false
}
