package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parking-status-backend/internal/model"
)

func TestParseTelemetry(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  Telemetry
		expectErr bool
	}{
		{
			name:     "Firmware occupied",
			raw:      "vaga1:ocupada",
			expected: Telemetry{Slot: 1, Status: model.SlotOccupied},
		},
		{
			name:     "Firmware free with whitespace",
			raw:      "  vaga2:livre\n",
			expected: Telemetry{Slot: 2, Status: model.SlotFree},
		},
		{
			name:     "English vocabulary",
			raw:      "slot3:blocked",
			expected: Telemetry{Slot: 3, Status: model.SlotBlocked},
		},
		{
			name:     "Mixed case",
			raw:      "VAGA10:Bloqueada",
			expected: Telemetry{Slot: 10, Status: model.SlotBlocked},
		},
		{
			name:      "Unknown status",
			raw:       "vaga1:reservada",
			expectErr: true,
		},
		{
			name:      "Missing separator",
			raw:       "vaga1 ocupada",
			expectErr: true,
		},
		{
			name:      "Slot zero",
			raw:       "vaga0:livre",
			expectErr: true,
		},
		{
			name:      "Empty",
			raw:       "",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTelemetry(tc.raw)
			if tc.expectErr {
				assert.ErrorIs(t, err, model.ErrMalformedMessage)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFormatTelemetry(t *testing.T) {
	assert.Equal(t, "vaga1:bloqueada", FormatTelemetry(1, model.SlotBlocked))
	assert.Equal(t, "vaga2:livre", FormatTelemetry(2, model.SlotFree))

	parsed, err := ParseTelemetry(FormatTelemetry(4, model.SlotOccupied))
	assert.NoError(t, err)
	assert.Equal(t, Telemetry{Slot: 4, Status: model.SlotOccupied}, parsed)
}
