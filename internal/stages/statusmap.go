package stages

import (
	"strings"

	"github.com/shaiso/Skyline/internal/domain"
)

// Составные статусы crawler'а: "STATE/LAST".
const (
	crawlerRunning   = "RUNNING"
	crawlerStopping  = "STOPPING"
	crawlerReady     = "READY"
	crawlerPending   = "PENDING"
	crawlerUndefined = "UNDEFINED"
)

// DefaultStatusMap возвращает карту статусов по умолчанию для типа стадии.
// Возвращается новая карта: вызывающий может её изменять.
func DefaultStatusMap(kind domain.StageKind) domain.StatusMap {
	switch kind {
	case domain.StageKindETLJob:
		return domain.StatusMap{
			"SUCCEEDED": domain.MappedSuccess,
			"FAILED":    domain.MappedFailure,
			"STOPPED":   domain.MappedFailure,
			"TIMEOUT":   domain.MappedFailure,
			"TIMED_OUT": domain.MappedFailure,
			"ERROR":     domain.MappedFailure,
			"EXPIRED":   domain.MappedFailure,
			"RUNNING":   domain.MappedInProgress,
			"STARTING":  domain.MappedInProgress,
			"STOPPING":  domain.MappedInProgress,
			"WAITING":   domain.MappedInProgress,
		}

	case domain.StageKindCatalogCrawler:
		return domain.StatusMap{
			crawlerRunning:                        domain.MappedInProgress,
			crawlerStopping:                       domain.MappedInProgress,
			crawlerReady + "/SUCCEEDED":           domain.MappedSuccess,
			crawlerReady + "/FAILED":              domain.MappedFailure,
			crawlerReady + "/CANCELLED":           domain.MappedFailure,
			crawlerReady + "/" + crawlerPending:   domain.MappedInProgress,
			crawlerReady + "/" + crawlerUndefined: domain.MappedInProgress,
		}

	case domain.StageKindInfraDeploy:
		// Остальные статусы стека классифицируются по семейству (classifyStack).
		return domain.StatusMap{
			"CREATE_COMPLETE":          domain.MappedSuccess,
			"UPDATE_COMPLETE":          domain.MappedSuccess,
			"IMPORT_COMPLETE":          domain.MappedSuccess,
			"UPDATE_ROLLBACK_COMPLETE": domain.MappedFailure,
			"ROLLBACK_COMPLETE":        domain.MappedFailure,
			"CREATE_FAILED":            domain.MappedFailure,
			"UPDATE_FAILED":            domain.MappedFailure,
			"DELETE_COMPLETE":          domain.MappedFailure,
		}

	default:
		return domain.StatusMap{}
	}
}

// classifyStack классифицирует статус стека по семейству:
// FAILED или ROLLBACK в любом месте — failure (даже *_ROLLBACK_COMPLETE),
// *_COMPLETE — success, остальное (*_IN_PROGRESS) — in_progress.
func classifyStack(raw string) domain.Mapped {
	s := domain.NormalizeStatus(raw)
	switch {
	case strings.Contains(s, "FAILED"), strings.Contains(s, "ROLLBACK"):
		return domain.MappedFailure
	case strings.HasSuffix(s, "_COMPLETE"):
		return domain.MappedSuccess
	default:
		return domain.MappedInProgress
	}
}

// classifier — общая логика Classify: сначала карта дескриптора, затем fallback.
func classify(states domain.StatusMap, raw string, fallback func(string) domain.Mapped) domain.Mapped {
	if v, ok := states.Lookup(raw); ok {
		return v
	}
	if fallback != nil {
		return fallback(raw)
	}
	return domain.MappedInProgress
}

// withDefaults дополняет карту дескриптора картой по умолчанию.
// Значения дескриптора имеют приоритет.
func withDefaults(desc domain.StageDescriptor) domain.StageDescriptor {
	desc.TerminalStates = DefaultStatusMap(desc.Kind).Merge(desc.TerminalStates)
	return desc
}
