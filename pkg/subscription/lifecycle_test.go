package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		event   Event
		want    Status
		wantErr bool
	}{
		{"activate pending", StatusNotActive, EventActivate, StatusActive, false},
		{"cancel pending", StatusNotActive, EventCancel, StatusCancelled, false},
		{"renew pending", StatusNotActive, EventRenew, "", true},

		{"upgrade active", StatusActive, EventUpgrade, StatusActive, false},
		{"pause active", StatusActive, EventPause, StatusPaused, false},
		{"cancel active", StatusActive, EventCancel, StatusCancelled, false},
		{"renew active", StatusActive, EventRenew, StatusActive, false},
		{"expire active", StatusActive, EventExpire, StatusExpired, false},
		{"resume active", StatusActive, EventResume, "", true},

		{"resume paused", StatusPaused, EventResume, StatusActive, false},
		{"cancel paused", StatusPaused, EventCancel, StatusCancelled, false},
		{"renew paused", StatusPaused, EventRenew, "", true},
		{"upgrade paused", StatusPaused, EventUpgrade, "", true},
		{"expire paused", StatusPaused, EventExpire, "", true},

		{"cancel cancelled", StatusCancelled, EventCancel, "", true},
		{"resume cancelled", StatusCancelled, EventResume, "", true},
		{"renew expired", StatusExpired, EventRenew, "", true},
		{"activate expired", StatusExpired, EventActivate, "", true},

		{"unknown status", Status("limbo"), EventRenew, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextStatus(tt.from, tt.event)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanFire(t *testing.T) {
	assert.True(t, canFire(StatusActive, EventRenew))
	assert.True(t, canFire(StatusPaused, EventResume))
	assert.False(t, canFire(StatusCancelled, EventRenew))
	assert.False(t, canFire(StatusExpired, EventResume))
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	assert.Empty(t, transitions[StatusCancelled])
	assert.Empty(t, transitions[StatusExpired])
}
