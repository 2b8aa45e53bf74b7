package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusPast      Status = "PAST"
	StatusBooked    Status = "BOOKED"
)

// slotNamespace seeds the deterministic slot ids. Slots are derived, never
// stored, so regenerating the same grid must yield the same ids.
var slotNamespace = uuid.MustParse("8b9e3694-07d7-44cd-a07e-8e286df46892")

// TimeSlot is a fixed-duration bookable unit derived from a WorkBlock.
type TimeSlot struct {
	ID         uuid.UUID `json:"id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	BlockStart time.Time `json:"block_start"`
	RoomID     int       `json:"room_id"`
	Status     Status    `json:"status"`
}

// Date returns the midnight UTC day the slot falls on.
func (s TimeSlot) Date() time.Time {
	return s.Start.UTC().Truncate(24 * time.Hour)
}

// DeterministicID hashes (doctor, start, end) into a stable slot id.
func DeterministicID(doctorID uuid.UUID, start, end time.Time) uuid.UUID {
	name := fmt.Sprintf("%s|%d|%d", doctorID, start.UTC().Unix(), end.UTC().Unix())
	return uuid.NewSHA1(slotNamespace, []byte(name))
}
