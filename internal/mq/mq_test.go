package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shaiso/Skyline/internal/domain"
)

func TestMessage_StorageEventRoundTrip(t *testing.T) {
	received := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	msg, err := NewMessage(MessageTypeStorageEvent, StorageEventPayload{
		Bucket:         "airline-data",
		SourceLocation: "raw/flights_2024_01.csv",
		EventType:      "put",
		ReceivedAt:     received,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Конверт проходит через JSON, как в очереди
	body, _ := json.Marshal(msg)
	var decoded Message
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	payload, err := ParsePayload[StorageEventPayload](&decoded)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}

	ev := payload.Event()
	if ev.SourceLocation != "raw/flights_2024_01.csv" || ev.Bucket != "airline-data" || !ev.ReceivedAt.Equal(received) {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestParsePayload_Empty(t *testing.T) {
	if _, err := ParsePayload[StorageEventPayload](&Message{Type: MessageTypeStorageEvent}); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestNewRunFinishedPayload(t *testing.T) {
	run := domain.NewRun("airline-operations", domain.TriggerEvent{SourceLocation: "raw/a.csv", EventType: "put"})
	run.AddStage(domain.StageResult{StageName: "FinalGlue", Kind: domain.StageKindETLJob, Outcome: domain.StageOutcomeFailure, FinalStatus: "FAILED", Attempts: 1})
	run.MarkFailed("FinalGlue", "job finished with status FAILED")

	p := NewRunFinishedPayload(run)
	if p.RunID != run.ID || p.Outcome != domain.RunOutcomeFailed || p.FailedStage != "FinalGlue" {
		t.Errorf("unexpected payload %+v", p)
	}
	if len(p.Stages) != 1 || p.Stages[0].FinalStatus != "FAILED" {
		t.Errorf("unexpected stages %+v", p.Stages)
	}
}
