package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"parking-status-backend/internal/model"
)

var telemetryRe = regexp.MustCompile(`(?i)^(?:slot|vaga)\s*(\d+)\s*:\s*([a-z]+)$`)

// Telemetry is one decoded slot message.
type Telemetry struct {
	Slot   int
	Status model.SlotStatus
}

// ParseStatus maps a status word in either vocabulary to a SlotStatus.
func ParseStatus(word string) (model.SlotStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "livre", "free":
		return model.SlotFree, true
	case "ocupada", "occupied":
		return model.SlotOccupied, true
	case "bloqueada", "blocked":
		return model.SlotBlocked, true
	}
	return "", false
}

// ParseTelemetry decodes messages of the form "vaga1:ocupada" or "slot2:free".
// Slot range is not checked here.
func ParseTelemetry(raw string) (Telemetry, error) {
	m := telemetryRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Telemetry{}, fmt.Errorf("%w: unrecognised telemetry %q", model.ErrMalformedMessage, raw)
	}

	slot, err := strconv.Atoi(m[1])
	if err != nil || slot <= 0 {
		return Telemetry{}, fmt.Errorf("%w: invalid slot in %q", model.ErrMalformedMessage, raw)
	}

	status, ok := ParseStatus(m[2])
	if !ok {
		return Telemetry{}, fmt.Errorf("%w: unknown status %q", model.ErrMalformedMessage, m[2])
	}
	return Telemetry{Slot: slot, Status: status}, nil
}

// FormatTelemetry renders the firmware form of a slot status, e.g. "vaga1:livre".
func FormatTelemetry(slot int, status model.SlotStatus) string {
	return fmt.Sprintf("vaga%d:%s", slot, status.Word())
}
