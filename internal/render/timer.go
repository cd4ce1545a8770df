package render

import (
	"fmt"
	"time"
)

// Phase is the visual state of the countdown.
type Phase string

const (
	PhaseNormal  Phase = "normal"
	PhaseWarning Phase = "warning"
	PhaseDanger  Phase = "danger"
	PhaseExpired Phase = "expired"
)

const (
	WarningThreshold = 10 * time.Minute
	DangerThreshold  = 5 * time.Minute
)

// PhaseFor returns the countdown phase for the remaining time.
func PhaseFor(remaining time.Duration) Phase {
	switch {
	case remaining <= 0:
		return PhaseExpired
	case remaining <= DangerThreshold:
		return PhaseDanger
	case remaining <= WarningThreshold:
		return PhaseWarning
	default:
		return PhaseNormal
	}
}

// Clock formats remaining time as MM:SS, or H:MM:SS from one hour up.
func Clock(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	total := int(remaining / time.Second)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
