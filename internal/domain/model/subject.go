package model

// Subject is a tracked item, usually a medication. Subjects are owned outside the
// core; the coordinator reads them for display names and cascades.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
