package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action names the ledger write that produced an event.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// LedgerEvent is a change notification for a single expense record.
// Consumers re-read the record from the ledger if they need its fields.
type LedgerEvent struct {
	Action    Action    `json:"action"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time
func NewLedgerEvent(action Action, id int64) *LedgerEvent {
	return &LedgerEvent{
		Action:    action,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown action %q", ev.Action)
	}
	return &ev, nil
}
