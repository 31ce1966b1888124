package purchasing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"Draft", "Sent", "Confirmed", "Shipped", "PartiallyReceived", "Received", "Cancelled"} {
		status, err := ParseStatus(raw)
		require.NoError(t, err)
		require.Equal(t, Status(raw), status)
	}

	_, err := ParseStatus("Approved")
	require.ErrorIs(t, err, ErrValidation)
	_, err = ParseStatus("draft")
	require.ErrorIs(t, err, ErrValidation)
	_, err = ParseStatus("")
	require.ErrorIs(t, err, ErrValidation)
}

func TestStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to Status
	}{
		{StatusDraft, StatusSent},
		{StatusDraft, StatusCancelled},
		{StatusSent, StatusConfirmed},
		{StatusSent, StatusCancelled},
		{StatusConfirmed, StatusShipped},
		{StatusConfirmed, StatusPartiallyReceived},
		{StatusConfirmed, StatusReceived},
		{StatusConfirmed, StatusCancelled},
		{StatusShipped, StatusPartiallyReceived},
		{StatusShipped, StatusReceived},
		{StatusShipped, StatusCancelled},
		{StatusPartiallyReceived, StatusPartiallyReceived},
		{StatusPartiallyReceived, StatusReceived},
		{StatusPartiallyReceived, StatusCancelled},
	}
	allowedSet := make(map[[2]Status]bool, len(allowed))
	for _, edge := range allowed {
		allowedSet[[2]Status{edge.from, edge.to}] = true
		require.True(t, edge.from.CanTransition(edge.to), "%s -> %s should be allowed", edge.from, edge.to)
	}

	all := []Status{StatusDraft, StatusSent, StatusConfirmed, StatusShipped, StatusPartiallyReceived, StatusReceived, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			if allowedSet[[2]Status{from, to}] {
				continue
			}
			require.False(t, from.CanTransition(to), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	require.Empty(t, transitions[StatusReceived])
	require.Empty(t, transitions[StatusCancelled])
	require.False(t, StatusReceived.Receivable())
	require.True(t, StatusCancelled.Deletable())
	require.True(t, StatusDraft.Deletable())
	require.False(t, StatusSent.Deletable())
}
