package order

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionHappyPath(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusConfirmed))
	require.True(t, CanTransition(StatusConfirmed, StatusShipping))
	require.True(t, CanTransition(StatusShipping, StatusDelivered))
}

func TestCanTransitionCancellation(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusCancelled))
	require.True(t, CanTransition(StatusConfirmed, StatusCancelled))
	require.False(t, CanTransition(StatusShipping, StatusCancelled))
	require.False(t, CanTransition(StatusDelivered, StatusCancelled))
}

func TestCanTransitionNeverBackwards(t *testing.T) {
	require.False(t, CanTransition(StatusConfirmed, StatusPending))
	require.False(t, CanTransition(StatusShipping, StatusConfirmed))
	require.False(t, CanTransition(StatusDelivered, StatusShipping))
}

func TestCanTransitionTerminalStates(t *testing.T) {
	for _, to := range []Status{StatusPending, StatusConfirmed, StatusShipping, StatusDelivered, StatusCancelled} {
		require.False(t, CanTransition(StatusDelivered, to), "delivered -> %s", to)
		require.False(t, CanTransition(StatusCancelled, to), "cancelled -> %s", to)
	}
}

func TestCanTransitionRejectsUnknownAndSelf(t *testing.T) {
	require.False(t, CanTransition(StatusPending, StatusPending))
	require.False(t, CanTransition(Status("archived"), StatusConfirmed))
	require.False(t, CanTransition(StatusPending, Status("archived")))
}

func TestTerminal(t *testing.T) {
	require.True(t, StatusDelivered.Terminal())
	require.True(t, StatusCancelled.Terminal())
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusShipping.Terminal())
}
