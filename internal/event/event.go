package event

import (
	"time"

	"github.com/rokbot/titlebot/internal/queue"
)

type Event interface {
	Message() string
	Kingdom() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	message    string
	kingdom    string
	occurredAt time.Time
}

func (b BaseEvent) Message() string {
	return b.message
}

func (b BaseEvent) Kingdom() string {
	return b.kingdom
}

func (b BaseEvent) OccurredAt() time.Time {
	return b.occurredAt
}

func Text(kingdom string, message string) BaseEvent {
	return BaseEvent{
		message:    message,
		kingdom:    kingdom,
		occurredAt: time.Now(),
	}
}

type RequestQueuedEvent struct {
	BaseEvent
	Request  queue.Request
	Position int
}

func RequestQueued(be BaseEvent, req queue.Request, position int) RequestQueuedEvent {
	return RequestQueuedEvent{BaseEvent: be, Request: req, Position: position}
}

type StateChangedEvent struct {
	BaseEvent
	Request queue.Request
	State   queue.State
}

func StateChanged(be BaseEvent, req queue.Request, state queue.State) StateChangedEvent {
	return StateChangedEvent{BaseEvent: be, Request: req, State: state}
}

type FinishReason string

const (
	FinishedAcknowledged FinishReason = "acknowledged"
	FinishedTimedOut     FinishReason = "timedOut"
	FinishedError        FinishReason = "error"
)

type RequestFinishedEvent struct {
	BaseEvent
	Request queue.Request
	Reason  FinishReason
}

func RequestFinished(be BaseEvent, req queue.Request, reason FinishReason) RequestFinishedEvent {
	return RequestFinishedEvent{BaseEvent: be, Request: req, Reason: reason}
}

type ConnectionLostEvent struct {
	BaseEvent
	Request queue.Request
}

func ConnectionLost(be BaseEvent, req queue.Request) ConnectionLostEvent {
	return ConnectionLostEvent{BaseEvent: be, Request: req}
}

type AppRefreshedEvent struct {
	BaseEvent
}

func AppRefreshed(be BaseEvent) AppRefreshedEvent {
	return AppRefreshedEvent{BaseEvent: be}
}

type NgrokTunnelEvent struct {
	BaseEvent
	URL string
}

func NgrokTunnel(url string) NgrokTunnelEvent {
	return NgrokTunnelEvent{BaseEvent: Text("", "Status page available at "+url), URL: url}
}
