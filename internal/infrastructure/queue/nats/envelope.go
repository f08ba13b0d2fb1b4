package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/kirillkom/textify/internal/core/domain"
)

type extractionPayload struct {
	EntryID    string                  `json:"entry_id"`
	Ordinal    int                     `json:"ordinal"`
	Filename   string                  `json:"filename"`
	Status     domain.ExtractionStatus `json:"status"`
	Engine     string                  `json:"engine,omitempty"`
	DurationMS float64                 `json:"duration_ms"`
	Chars      int                     `json:"chars"`
}

// encodeEvent wraps payload in a structured-mode CloudEvent; the session id travels as subject.
func encodeEvent(source, sessionID, eventType string, at time.Time, payload any) ([]byte, error) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetSubject(sessionID)
	event.SetTime(at)
	if err := event.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return nil, fmt.Errorf("set event data: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

func decodeEvent(raw []byte) (domain.SessionEvent, error) {
	event := cloudevents.NewEvent()
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.SessionEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Subject() == "" {
		return domain.SessionEvent{}, errors.New("event has no session subject")
	}
	payload := json.RawMessage(event.Data())
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return domain.SessionEvent{
		ID:         event.ID(),
		SessionID:  event.Subject(),
		Type:       event.Type(),
		Payload:    payload,
		OccurredAt: event.Time().UTC(),
	}, nil
}
