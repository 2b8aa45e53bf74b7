package schedule

import (
	"time"

	"github.com/google/uuid"
)

type Shift string

const (
	ShiftMorning   Shift = "MORNING"
	ShiftAfternoon Shift = "AFTERNOON"
)

// Shifts lists the shifts in their canonical daily order.
var Shifts = []Shift{ShiftMorning, ShiftAfternoon}

// WorkBlock is a contiguous span of time a doctor is available, as published
// by the scheduling source. Identified by (doctor, date, shift); immutable
// once published.
type WorkBlock struct {
	DoctorID uuid.UUID
	Date     time.Time // midnight UTC of the working day
	Shift    Shift
	Start    time.Time
	End      time.Time
	RoomID   int
}

func shiftRank(s Shift) int {
	if s == ShiftMorning {
		return 0
	}
	return 1
}
