package types

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	NoSessionsMessage = "No sessions found for user."
)

// ResultShape identifies which of the three result layouts an AnalysisResult carries.
type ResultShape int

const (
	ShapeSuccess ResultShape = iota
	ShapeEmpty
	ShapeFailure
)

// AnalysisResult is the outcome of analyzing one user's sessions.
type AnalysisResult struct {
	Shape ResultShape

	UserID                    string
	TotalSessions             int
	AverageSessionDurationMin float64
	MaxSessionDurationMin     float64

	Error string
	// ErrorKind classifies a failure for callers; it is not serialized.
	ErrorKind string
}

type successResult struct {
	UserID                    string  `json:"user_id"`
	TotalSessions             int     `json:"total_sessions"`
	AverageSessionDurationMin float64 `json:"average_session_duration_min"`
	MaxSessionDurationMin     float64 `json:"max_session_duration_min"`
	Status                    string  `json:"status"`
}

type emptyResult struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type failureResult struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

// Success builds the success shape.
func Success(userID string, total int, avg, peak float64) AnalysisResult {
	return AnalysisResult{
		Shape:                     ShapeSuccess,
		UserID:                    userID,
		TotalSessions:             total,
		AverageSessionDurationMin: avg,
		MaxSessionDurationMin:     peak,
	}
}

// Empty builds the shape returned when no sessions matched.
func Empty(userID string) AnalysisResult {
	return AnalysisResult{Shape: ShapeEmpty, UserID: userID}
}

// Failure builds the failure shape from an error kind and description.
func Failure(kind, msg string) AnalysisResult {
	return AnalysisResult{Shape: ShapeFailure, Error: msg, ErrorKind: kind}
}

// Status returns "success", "failure" or "" for the empty shape, which carries no status.
func (r AnalysisResult) Status() string {
	switch r.Shape {
	case ShapeSuccess:
		return StatusSuccess
	case ShapeFailure:
		return StatusFailure
	}
	return ""
}

func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	switch r.Shape {
	case ShapeSuccess:
		return json.Marshal(successResult{
			UserID:                    r.UserID,
			TotalSessions:             r.TotalSessions,
			AverageSessionDurationMin: r.AverageSessionDurationMin,
			MaxSessionDurationMin:     r.MaxSessionDurationMin,
			Status:                    StatusSuccess,
		})
	case ShapeEmpty:
		return json.Marshal(emptyResult{Message: NoSessionsMessage, UserID: r.UserID})
	default:
		return json.Marshal(failureResult{Error: r.Error, Status: StatusFailure})
	}
}
