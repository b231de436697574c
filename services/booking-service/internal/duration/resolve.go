// Package duration turns free-text service durations ("1.5 hours", "45 min")
// into whole minutes.
package duration

import (
	"math"
	"regexp"
	"strconv"
)

// DefaultMinutes is used when a description carries no recognizable duration.
const DefaultMinutes = 60

// A number must not continue a longer number ("1.5" is not read as "5"), and a unit
// ends at any non-letter so compact forms like "1h30m" still match.
var (
	hoursPattern   = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d*\.?\d+)\s*(?:hours?|hrs?|h)(?:[^a-z]|$)`)
	minutesPattern = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d+)\s*(?:minutes?|mins?|m)(?:[^a-z]|$)`)
)

// ResolveMinutes returns a positive number of minutes for description.
// An hours expression takes precedence over a minutes expression.
func ResolveMinutes(description string) int {
	if m := hoursPattern.FindStringSubmatch(description); m != nil {
		if h, err := strconv.ParseFloat(m[1], 64); err == nil {
			if mins := int(math.Round(h * 60)); mins > 0 {
				return mins
			}
		}
		return DefaultMinutes
	}
	if m := minutesPattern.FindStringSubmatch(description); m != nil {
		if mins, err := strconv.Atoi(m[1]); err == nil && mins > 0 {
			return mins
		}
	}
	return DefaultMinutes
}
