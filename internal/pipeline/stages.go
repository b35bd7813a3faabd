package pipeline

import (
	"errors"
	"fmt"

	"crm-webhook/internal/crm"
	"crm-webhook/internal/llm"
)

// Stage names one step of event processing. Values double as metric labels.
type Stage string

const (
	StageDecode     Stage = "decode"
	StageLeadStatus Stage = "lead_status"
	StagePersist    Stage = "persist"
	StageFetch      Stage = "fetch"
	StageTranscribe Stage = "transcribe"
	StagePermission Stage = "permission"
	StageAssistant  Stage = "assistant"
	StageAnalyze    Stage = "analyze"
	StageRecord     Stage = "record"
	StageNotify     Stage = "notify"
)

// Outcome is how an event's processing ended.
type Outcome string

const (
	// OutcomeStored: rows persisted, no audio to work on.
	OutcomeStored Outcome = "stored"
	// OutcomePermissionDenied: transcript kept, analysis withheld.
	OutcomePermissionDenied Outcome = "permission_denied"
	// OutcomeNoAssistant: transcript available but no active template.
	OutcomeNoAssistant Outcome = "no_assistant"
	OutcomeDone        Outcome = "done"
	OutcomeFailed      Outcome = "failed"
)

// StageError wraps the failure of a single stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// StatusCode returns the upstream HTTP status behind err, 0 if there is none.
func StatusCode(err error) int {
	var se *crm.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return llm.StatusCode(err)
}
