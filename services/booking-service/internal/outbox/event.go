package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const EventAssignmentConfirmed = "booking.assignment.confirmed.v1"

type assignmentConfirmedPayload struct {
	AssignmentID    string `json:"assignment_id"`
	ProviderID      string `json:"provider_id"`
	ServiceID       string `json:"service_id,omitempty"`
	Date            string `json:"date"`
	TimeSlot        string `json:"time_slot"`
	DurationMinutes int    `json:"duration_minutes"`
	CustomerName    string `json:"customer_name,omitempty"`
	ConfirmedAt     string `json:"confirmed_at"`
}

// AssignmentConfirmed builds the event emitted when a booking commits. Events are keyed
// by provider so a provider's confirmations stay ordered within a partition.
func AssignmentConfirmed(a model.Assignment) (Event, error) {
	payload, err := json.Marshal(assignmentConfirmedPayload{
		AssignmentID:    a.ID,
		ProviderID:      a.ProviderRef(),
		ServiceID:       a.ServiceID(),
		Date:            a.Date,
		TimeSlot:        a.TimeSlot,
		DurationMinutes: a.DurationMinutes,
		CustomerName:    a.CustomerName,
		ConfirmedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "provider",
		AggregateID:   a.ProviderRef(),
		EventType:     EventAssignmentConfirmed,
		Payload:       payload,
	}, nil
}
