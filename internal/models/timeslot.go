package models

import "fmt"

// Section groups time slots into parts of the day
type Section string

const (
	SectionMorning   Section = "morning"
	SectionAfternoon Section = "afternoon"
	SectionEvening   Section = "evening"
)

// TimeSlot is one hour of the planning day. Slots are fixed reference data.
type TimeSlot struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Section Section `json:"section"`
	Hour    int     `json:"hour"`
}

const (
	firstHour = 8
	lastHour  = 23
)

var (
	timeSlots   = buildTimeSlots()
	timeSlotIDs = indexTimeSlots(timeSlots)
)

// TimeSlots returns every slot of the day in chronological order
func TimeSlots() []TimeSlot {
	out := make([]TimeSlot, len(timeSlots))
	copy(out, timeSlots)
	return out
}

// IsTimeSlot reports whether id names a known slot
func IsTimeSlot(id string) bool {
	_, ok := timeSlotIDs[id]
	return ok
}

// TimeSlotByID returns the slot with the given id
func TimeSlotByID(id string) (TimeSlot, bool) {
	i, ok := timeSlotIDs[id]
	if !ok {
		return TimeSlot{}, false
	}
	return timeSlots[i], true
}

// EmptySchedule returns a schedule with every known slot mapped to an empty list
func EmptySchedule() ScheduleData {
	s := make(ScheduleData, len(timeSlots))
	for _, slot := range timeSlots {
		s[slot.ID] = []ScheduledTask{}
	}
	return s
}

func sectionForHour(hour int) Section {
	switch {
	case hour < 12:
		return SectionMorning
	case hour < 17:
		return SectionAfternoon
	default:
		return SectionEvening
	}
}

func slotLabel(hour int) string {
	suffix := "AM"
	h := hour
	if hour >= 12 {
		suffix = "PM"
	}
	if h > 12 {
		h -= 12
	}
	return fmt.Sprintf("%d:00 %s", h, suffix)
}

func buildTimeSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, lastHour-firstHour+1)
	for hour := firstHour; hour <= lastHour; hour++ {
		section := sectionForHour(hour)
		slots = append(slots, TimeSlot{
			ID:      fmt.Sprintf("slot-%s-%02d", section, hour),
			Label:   slotLabel(hour),
			Section: section,
			Hour:    hour,
		})
	}
	return slots
}

func indexTimeSlots(slots []TimeSlot) map[string]int {
	idx := make(map[string]int, len(slots))
	for i, s := range slots {
		idx[s.ID] = i
	}
	return idx
}
