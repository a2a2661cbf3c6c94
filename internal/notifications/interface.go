package notifications

import "time"

// EventKind names the out-of-band event types the engine emits.
type EventKind string

const (
	EventTradeOpened     EventKind = "trade_opened"
	EventTradeClosed     EventKind = "trade_closed"
	EventSignalRejected  EventKind = "signal_rejected"
	EventOrderFailed     EventKind = "order_failed"
	EventBreakerTripped  EventKind = "circuit_breaker_tripped"
	EventBreakerWarning  EventKind = "circuit_breaker_warning"
	EventBreakerReset    EventKind = "circuit_breaker_reset"
	EventEngineStarted   EventKind = "engine_started"
	EventEngineStopped   EventKind = "engine_stopped"
	EventFatalError      EventKind = "fatal_error"
)

// Event is a structured notification. Reason carries the stable reason
// code; Message is the human-readable rendering.
type Event struct {
	Kind    EventKind
	Symbol  string
	Reason  string
	Message string
	Time    time.Time
}

// Notifier delivers events out of band. Emit is fire-and-forget: delivery
// failures must never affect trading decisions.
type Notifier interface {
	Emit(event Event)
}

// Nop is a Notifier that discards every event.
type Nop struct{}

func (Nop) Emit(Event) {}
