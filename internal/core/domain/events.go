package domain

import (
	"encoding/json"
	"time"
)

// EventNewTicket is the only push event the client acts on.
const EventNewTicket = "new_ticket"

// PushEvent is a message received on the push socket.
type PushEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NoticeLevel grades a Notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible message about a store operation, typically a
// failure that has been rolled back.
type Notice struct {
	Level     NoticeLevel `json:"level"`
	Operation string      `json:"operation"`
	Message   string      `json:"message"`
	TicketID  TicketID    `json:"ticket_id,omitempty"`
	At        time.Time   `json:"at"`
}

// Dashboard feed event types.
const (
	FeedTicketArrived = "TICKET_ARRIVED"
	FeedNotice        = "NOTICE"
	FeedPong          = "PONG"
)

// FeedEvent is a message sent to dashboard feed subscribers.
type FeedEvent struct {
	Type   string  `json:"type"`
	Ticket *Ticket `json:"ticket,omitempty"`
	Notice *Notice `json:"notice,omitempty"`
}
