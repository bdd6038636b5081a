package schedule

import "errors"

var (
	// ErrDayNotFound is returned when no plan file exists for the requested day.
	ErrDayNotFound = errors.New("no plan for day")
	// ErrInvalidTarget is returned when a day target is neither a keyword nor YYYY-MM-DD.
	ErrInvalidTarget = errors.New("invalid day target")
	// ErrInvalidDay is returned when a plan file cannot be parsed or holds an unusable block.
	ErrInvalidDay = errors.New("invalid day plan")
	// ErrShiftOutOfDay is returned when a reschedule would move a block start across midnight.
	ErrShiftOutOfDay = errors.New("shift moves a block outside the day")
)
