package analytics

import (
	"fmt"
	"time"
)

// FormatDuration renders d truncated to whole seconds as "1h 2min 3s", "2min 3s" or "3s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dmin %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dmin %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
