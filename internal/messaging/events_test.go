package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiatedEventMintsFreshCorrelation(t *testing.T) {
	a := NewRegistrationInitiatedEvent("u1", "alice", "Alice", "A", "1990-01-01")
	b := NewRegistrationInitiatedEvent("u2", "bob", "Bob", "B", "1985-06-15")

	assert.Equal(t, TypeRegistrationInitiated, a.EventType)
	assert.NotEmpty(t, a.CorrelationID)
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID, "each saga instance gets its own correlation id")
	assert.NotEqual(t, a.EventID, b.EventID)

	_, err := time.Parse(time.RFC3339, a.Timestamp)
	require.NoError(t, err)
}

func TestCompletedEventCopiesCorrelation(t *testing.T) {
	initiated := NewRegistrationInitiatedEvent("u1", "alice", "Alice", "A", "1990-01-01")
	completed := NewRegistrationCompletedEvent(initiated.CorrelationID, initiated.UserID, false, "insert rejected")

	assert.Equal(t, initiated.CorrelationID, completed.CorrelationID, "correlation id is the saga join key")
	assert.NotEqual(t, initiated.EventID, completed.EventID, "event ids stay unique per publish")
	assert.Equal(t, TypeRegistrationCompleted, completed.EventType)
	assert.False(t, completed.Success)
	assert.Equal(t, "insert rejected", completed.Message)
}
