package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType clasifica las observaciones que emite el engine.
type EventType string

const (
	EventMarketCreated EventType = "market-created"
	EventStaked        EventType = "staked"
	EventResolved      EventType = "resolved"
	EventCancelled     EventType = "cancelled"
	EventClaimed       EventType = "claimed"
	EventRefunded      EventType = "refunded"
	EventDeadlineSet   EventType = "deadline-set"
	EventAdminSweep    EventType = "admin-sweep"
)

// Event es el sobre de una observación para indexers externos.
// Es puramente informativo: la corrección del ledger nunca depende de
// que un evento se entregue.
type Event struct {
	ID          string
	Type        EventType
	At          time.Time
	Slug        string
	Participant Participant
	Yes         bool      // lado, en staked
	OutcomeYes  bool      // resultado, en resolved
	Amount      Amount    // importe relevante del evento
	Deadline    time.Time // en deadline-set
}

// NewEvent crea el sobre base de un evento; el caller rellena los
// campos que el tipo concreto necesite.
func NewEvent(t EventType, at time.Time, slug string) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: t,
		At:   at,
		Slug: slug,
	}
}
