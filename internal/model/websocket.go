package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
	WSMessageTypeCancel   = "cancel"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage carries the projected progress of a run
type WSProgressMessage struct {
	Type     string       `json:"type"`
	RunID    string       `json:"runId"`
	Status   RunStatus    `json:"status"`
	Progress ProgressView `json:"progress"`
}

// WSCompleteMessage represents run completion
type WSCompleteMessage struct {
	Type   string            `json:"type"`
	RunID  string            `json:"runId"`
	Result *ProcessingResult `json:"result"`
}

// WSErrorMessage represents a failed or cancelled run
type WSErrorMessage struct {
	Type  string  `json:"type"`
	RunID string  `json:"runId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
