package conflict

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

// TimeSlot is the parsed form of an assignment's free-text slot. End is informational;
// HasEnd is false when the slot text carried only a start.
type TimeSlot struct {
	Start  model.Clock
	End    model.Clock
	HasEnd bool
}

var clockLayouts = []string{
	"15",
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

var meridiemReplacer = strings.NewReplacer("A.M.", "AM", "P.M.", "PM", "A.M", "AM", "P.M", "PM")

var rangeSeparators = []string{" to ", "–", "—", "-"}

// ParseTimeSlot accepts a start time, optionally followed by a separator and an end time.
func ParseTimeSlot(text string) (TimeSlot, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TimeSlot{}, fmt.Errorf("empty time slot")
	}

	startText, endText := splitRange(text)
	start, err := parseClockText(startText)
	if err != nil {
		return TimeSlot{}, err
	}
	slot := TimeSlot{Start: start}
	if strings.TrimSpace(endText) != "" {
		if end, err := parseClockText(endText); err == nil {
			slot.End = end
			slot.HasEnd = true
		}
	}
	return slot, nil
}

func splitRange(text string) (string, string) {
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		lower = text
	}
	for _, sep := range rangeSeparators {
		if i := strings.Index(lower, sep); i >= 0 {
			return text[:i], text[i+len(sep):]
		}
	}
	return text, ""
}

func parseClockText(s string) (model.Clock, error) {
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	s = meridiemReplacer.Replace(s)
	// "9.30" is a common legacy spelling of "9:30".
	s = strings.Replace(s, ".", ":", 1)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.ClockOf(t), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q", s)
}
