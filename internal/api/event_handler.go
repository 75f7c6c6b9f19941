package api

import (
	"io"
	"net/http"

	"github.com/shaiso/Skyline/internal/trigger"
)

// maxEventBody — предельный размер тела уведомления.
const maxEventBody = 1 << 20

// PostEvents принимает уведомление хранилища (webhook).
// POST /api/v1/events
//
// Тело, которое не удалось разобрать, даёт пустой список событий и 202:
// такие уведомления игнорируются. Если Dispatch не смог обработать событие
// и ни один pipeline не создал run, ответ 503: отправитель повторит доставку.
func (h *Handler) PostEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	events := trigger.ParseEvents(body)
	if len(events) == 0 {
		h.logger.Debug("webhook body has no storage events", "bytes", len(body))
	}

	resp := EventsResponse{Events: make([]EventResponse, 0, len(events))}
	var failed, accepted bool
	for _, ev := range events {
		decisions, err := h.dispatcher.Dispatch(r.Context(), ev)
		if err != nil {
			failed = true
			h.logger.Error("failed to dispatch storage event",
				"source_location", ev.SourceLocation,
				"error", err,
			)
		}
		for _, d := range decisions {
			accepted = accepted || d.Accepted()
		}

		item := EventResponse{
			SourceLocation: ev.SourceLocation,
			EventType:      ev.EventType,
			Decisions:      make([]DecisionResponse, len(decisions)),
		}
		for i, d := range decisions {
			item.Decisions[i] = DecisionFromOrchestrator(d)
		}
		resp.Events = append(resp.Events, item)
	}

	// Повтор после частичного приёма запустил бы второй run
	if failed && !accepted {
		Unavailable(w, "failed to dispatch storage event")
		return
	}
	Accepted(w, resp)
}
