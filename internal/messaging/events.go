package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Envelope carries the metadata common to every saga event. The correlation
// id is the join key for one saga instance: the initiating event mints it and
// every follow-up event copies it.
type Envelope struct {
	EventType     string `json:"eventType"`
	EventID       string `json:"eventId"`
	CorrelationID string `json:"correlationId"`
	Timestamp     string `json:"timestamp"`
}

func (e Envelope) Meta() Envelope { return e }

// Event is anything publishable through the saga publisher.
type Event interface {
	Meta() Envelope
}

func newEnvelope(eventType, correlationID string) Envelope {
	return Envelope{
		EventType:     eventType,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// BirthDateLayout is the wire format for profile birth dates.
const BirthDateLayout = "2006-01-02"

// RegistrationInitiatedEvent starts the registration saga. Published by the
// auth side after the disabled identity exists; immutable once published.
type RegistrationInitiatedEvent struct {
	Envelope
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
}

// NewRegistrationInitiatedEvent mints a fresh correlation id for the saga
// instance it initiates.
func NewRegistrationInitiatedEvent(userID, username, firstName, lastName, birthDate string) RegistrationInitiatedEvent {
	return RegistrationInitiatedEvent{
		Envelope:  newEnvelope(TypeRegistrationInitiated, uuid.NewString()),
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		BirthDate: birthDate,
	}
}

// RegistrationCompletedEvent reports the projection outcome back to the auth
// side. Its correlation id is always copied from the initiating event.
type RegistrationCompletedEvent struct {
	Envelope
	UserID  string `json:"userId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func NewRegistrationCompletedEvent(correlationID, userID string, success bool, message string) RegistrationCompletedEvent {
	return RegistrationCompletedEvent{
		Envelope: newEnvelope(TypeRegistrationCompleted, correlationID),
		UserID:   userID,
		Success:  success,
		Message:  message,
	}
}

// EducatorCreatedEvent asks the auth side to grant the educator role to an
// already-registered identity.
type EducatorCreatedEvent struct {
	Envelope
	UserID string `json:"userId"`
}

func NewEducatorCreatedEvent(userID string) EducatorCreatedEvent {
	return EducatorCreatedEvent{
		Envelope: newEnvelope(TypeEducatorCreated, uuid.NewString()),
		UserID:   userID,
	}
}
