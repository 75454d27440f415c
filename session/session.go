// Package session defines the analysis session model and its status state
// machine. A session is created when a recording is accepted and is mutated
// only by the pipeline orchestrator; Completed and Failed are terminal.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/interview-analyzer/errors"
)

// Mode selects how audio reaches the pipeline.
type Mode string

const (
	// ModeBatch processes a fully-recorded audio file.
	ModeBatch Mode = "batch"
	// ModeStreaming processes live audio chunks through the ingest buffer.
	ModeStreaming Mode = "streaming"
)

// Status is a session lifecycle state.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// validTransitions encodes the one-directional state machine:
// Uploaded -> Processing -> Completed | Failed, with streaming sessions
// additionally passing through Recording.
var validTransitions = map[Status][]Status{
	StatusUploaded:   {StatusRecording, StatusProcessing, StatusFailed},
	StatusRecording:  {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// StageError records a single stage failure. Failures are recorded even when
// the session still completes.
type StageError struct {
	Stage     string           `json:"stage"`
	Code      errors.ErrorCode `json:"code"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// Session is one interview-practice recording being analyzed.
type Session struct {
	mu sync.Mutex

	ID         string     `json:"id"`
	AudioPath  string     `json:"audio_path"`
	Mode       Mode       `json:"mode"`
	Status     Status     `json:"status"`
	FailReason string     `json:"fail_reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`

	Errors []StageError `json:"errors,omitempty"`
}

// New creates a session in the Uploaded state.
func New(audioPath string, mode Mode) *Session {
	return &Session{
		ID:        uuid.NewString(),
		AudioPath: audioPath,
		Mode:      mode,
		Status:    StatusUploaded,
		CreatedAt: time.Now().UTC(),
	}
}

// Transition moves the session to the next status. Transitions out of a
// terminal state are rejected.
func (s *Session) Transition(next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range validTransitions[s.Status] {
		if next == allowed {
			now := time.Now().UTC()
			switch next {
			case StatusProcessing:
				if s.StartedAt == nil {
					s.StartedAt = &now
				}
			case StatusCompleted, StatusFailed:
				s.EndedAt = &now
			}
			s.Status = next
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.Status, next)
}

// Fail transitions to Failed and records the reason. Safe to call from a
// non-terminal state only.
func (s *Session) Fail(reason string) error {
	if err := s.Transition(StatusFailed); err != nil {
		return err
	}
	s.mu.Lock()
	s.FailReason = reason
	s.mu.Unlock()
	return nil
}

// RecordError appends a stage failure to the session's error list.
func (s *Session) RecordError(stage string, code errors.ErrorCode, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, StageError{
		Stage:     stage,
		Code:      code,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

// CurrentStatus returns the status under the session lock.
func (s *Session) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// ErrorList returns a copy of the recorded stage errors.
func (s *Session) ErrorList() []StageError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StageError, len(s.Errors))
	copy(out, s.Errors)
	return out
}

// Terminal reports whether the session has reached a final state.
func (s *Session) Terminal() bool {
	st := s.CurrentStatus()
	return st == StatusCompleted || st == StatusFailed
}
