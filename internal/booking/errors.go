package booking

import "errors"

var (
	// ErrInvalidTransition: the event is not legal from the current state.
	ErrInvalidTransition = errors.New("invalid booking transition")

	// ErrDateDisabled: the date is in the past or behind the same-day cutoff.
	ErrDateDisabled = errors.New("date not selectable")

	// ErrSlotNotSelectable: the slot is past, booked, or not the session's
	// doctor.
	ErrSlotNotSelectable = errors.New("slot not selectable")

	// ErrSlotWrongDate: the slot does not fall on the selected date.
	ErrSlotWrongDate = errors.New("slot does not match the selected date")

	// ErrEmptySymptoms: rejected synchronously, state unchanged.
	ErrEmptySymptoms = errors.New("at least one symptom required")

	// ErrSlotNoLongerAvailable: the re-validation before payment found the
	// slot taken; the session fell back to date selection.
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
)
