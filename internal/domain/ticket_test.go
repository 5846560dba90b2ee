package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		allowed  bool
	}{
		{StatusInProgress, StatusInRequest, true},
		{StatusInProgress, StatusArchived, true},
		{StatusInProgress, StatusRejected, true},
		{StatusInRequest, StatusArchived, true},
		{StatusInRequest, StatusRejected, true},
		{StatusInRequest, StatusInProgress, false},
		{StatusArchived, StatusInProgress, false},
		{StatusArchived, StatusRejected, false},
		{StatusRejected, StatusArchived, false},
		{StatusRejected, StatusInRequest, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusInProgress.IsTerminal())
	assert.False(t, StatusInRequest.IsTerminal())
	assert.True(t, StatusArchived.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
}

func TestTicketTypeValidation(t *testing.T) {
	for _, ticketType := range AllTicketTypes() {
		assert.True(t, IsValidTicketType(ticketType))
	}
	assert.False(t, IsValidTicketType("vacation"))
	assert.False(t, IsValidTicketType(""))
}

func TestTicketTypeLabel(t *testing.T) {
	assert.Equal(t, "Hardware bestellen", TypeHardware.Label())
	assert.Equal(t, "unknown", TicketType("unknown").Label())
}

func TestDescriptionDocument(t *testing.T) {
	ticket := &Ticket{Description: `{"device":"laptop","count":2}`}
	doc, err := ticket.DescriptionDocument()
	require.NoError(t, err)
	assert.Equal(t, "laptop", doc["device"])

	ticket.Description = ""
	doc, err = ticket.DescriptionDocument()
	require.NoError(t, err)
	assert.Empty(t, doc)

	ticket.Description = `{"broken":`
	_, err = ticket.DescriptionDocument()
	assert.Error(t, err)
}

func TestNinjaTicketID(t *testing.T) {
	ticket := &Ticket{}
	assert.Zero(t, ticket.NinjaTicketID())
	ticket.NinjaMetadata = &NinjaMetadata{NinjaTicketID: 42}
	assert.Equal(t, int64(42), ticket.NinjaTicketID())
}
