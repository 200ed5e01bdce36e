package store

import "time"

// RunRecord captures one flashwatch invocation.
type RunRecord struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Family    string    `json:"family"`
	Target    string    `json:"target,omitempty"` // binary, or mcu for dumps
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	ExitCode  int       `json:"exit_code"`
	Duration  string    `json:"duration"`
	LogFile   string    `json:"log_file,omitempty"`
	Output    string    `json:"output,omitempty"` // captured serial text
	Error     string    `json:"error,omitempty"`
}
