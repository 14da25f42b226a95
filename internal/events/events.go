package events

import (
	"context"
	"sync"
	"time"

	"card-advisor-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventChatAnswered is emitted after every pipeline answer
	EventChatAnswered EventType = "chat.answered"
	// EventCardAdded is emitted when a user adds a card
	EventCardAdded EventType = "card.added"
	// EventCardRemoved is emitted when a user removes a card
	EventCardRemoved EventType = "card.removed"
	// EventReviewCreated is emitted when a review is posted
	EventReviewCreated EventType = "review.created"
	// EventCatalogUpserted is emitted on an admin catalog upsert
	EventCatalogUpserted EventType = "catalog.upserted"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// ChatAnsweredData contains data for chat answered events.
type ChatAnsweredData struct {
	UserID   string
	Query    string
	Envelope models.Envelope
}

// CardAddedData contains data for card added events.
type CardAddedData struct {
	UserCard models.UserCard
}

// ReviewCreatedData contains data for review created events.
type ReviewCreatedData struct {
	Review models.Review
}

// CatalogUpsertedData contains data for catalog upsert events.
type CatalogUpsertedData struct {
	Card models.CatalogCard
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if m == nil || !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Execute handlers asynchronously to avoid blocking the request.
	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				_ = err
			}
		}(handler)
	}
}

// PublishChatAnswered publishes a chat answered event.
func (m *Manager) PublishChatAnswered(ctx context.Context, userID, query string, env models.Envelope) {
	m.Publish(ctx, EventChatAnswered, ChatAnsweredData{
		UserID:   userID,
		Query:    query,
		Envelope: env,
	})
}

// PublishCardAdded publishes a card added event.
func (m *Manager) PublishCardAdded(ctx context.Context, uc models.UserCard) {
	m.Publish(ctx, EventCardAdded, CardAddedData{UserCard: uc})
}

// PublishReviewCreated publishes a review created event.
func (m *Manager) PublishReviewCreated(ctx context.Context, review models.Review) {
	m.Publish(ctx, EventReviewCreated, ReviewCreatedData{Review: review})
}

// PublishCatalogUpserted publishes a catalog upsert event.
func (m *Manager) PublishCatalogUpserted(ctx context.Context, card models.CatalogCard) {
	m.Publish(ctx, EventCatalogUpserted, CatalogUpsertedData{Card: card})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
