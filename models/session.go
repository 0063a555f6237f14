package models

// SessionRecord represents one stored user session document.
// Timestamps are kept as the raw ISO-8601 strings found in the store;
// an empty string means the field was missing or null.
type SessionRecord struct {
	UserID    string `json:"user_id" bson:"user_id"`
	StartTime string `json:"start_time,omitempty" bson:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty" bson:"end_time,omitempty"`
}

// HasTimestamps reports whether both start and end are populated.
func (s SessionRecord) HasTimestamps() bool {
	return s.StartTime != "" && s.EndTime != ""
}
