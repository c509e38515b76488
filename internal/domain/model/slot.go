package model

import "time"

// DueSlot is one expected dose produced by evaluating a schedule on a day.
// Slots are derived on every query and never persisted.
type DueSlot struct {
	SubjectID     string    `json:"subject_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	ScheduleID    string    `json:"schedule_id"`
}
