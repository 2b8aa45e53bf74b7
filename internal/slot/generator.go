package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/appointment-engine/internal/schedule"
)

// Booking is the occupied-interval view of a confirmed appointment. The
// generator only needs the doctor and the exact interval to tag a slot BOOKED.
type Booking struct {
	DoctorID uuid.UUID
	Start    time.Time
	End      time.Time
}

// Generate expands work blocks into a discrete slot grid. Each block's
// [start, end) is partitioned into contiguous slots of slotDuration; a
// trailing remainder shorter than the duration is dropped. Output order
// follows block order, so sorted blocks in give a sorted grid out, and the
// whole function is deterministic for identical inputs: slot status is a pure
// function of now and the booking set.
func Generate(blocks []schedule.WorkBlock, booked []Booking, slotDuration time.Duration, now time.Time) []TimeSlot {
	if slotDuration <= 0 {
		return nil
	}

	occupied := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		occupied[intervalKey(b.DoctorID, b.Start, b.End)] = struct{}{}
	}

	now = now.UTC()

	var slots []TimeSlot
	for _, block := range blocks {
		for start := block.Start; !start.Add(slotDuration).After(block.End); start = start.Add(slotDuration) {
			end := start.Add(slotDuration)

			status := StatusAvailable
			if !start.After(now) {
				status = StatusPast
			} else if _, taken := occupied[intervalKey(block.DoctorID, start, end)]; taken {
				status = StatusBooked
			}

			slots = append(slots, TimeSlot{
				ID:         DeterministicID(block.DoctorID, start, end),
				DoctorID:   block.DoctorID,
				Start:      start,
				End:        end,
				BlockStart: block.Start,
				RoomID:     block.RoomID,
				Status:     status,
			})
		}
	}

	return slots
}

// CountAvailable returns the number of slots still open for booking.
func CountAvailable(slots []TimeSlot) int {
	n := 0
	for _, s := range slots {
		if s.Status == StatusAvailable {
			n++
		}
	}
	return n
}

// DaySummary is the per-date availability shown on the date picker.
type DaySummary struct {
	Date      time.Time `json:"date"`
	Available int       `json:"available"`
	Total     int       `json:"total"`
}

// Summarize folds a slot grid into per-date counts, in grid order.
func Summarize(slots []TimeSlot) []DaySummary {
	var out []DaySummary
	idx := make(map[time.Time]int)

	for _, s := range slots {
		date := s.Date()
		i, ok := idx[date]
		if !ok {
			idx[date] = len(out)
			out = append(out, DaySummary{Date: date})
			i = len(out) - 1
		}
		out[i].Total++
		if s.Status == StatusAvailable {
			out[i].Available++
		}
	}

	return out
}

func intervalKey(doctorID uuid.UUID, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", doctorID, start.UTC().Unix(), end.UTC().Unix())
}
