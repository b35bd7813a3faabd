// Package pipeline runs an accepted webhook through decoding, persistence,
// transcription, analysis and the CRM callback.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crm-webhook/internal/analysis"
	"crm-webhook/internal/leads"
	"crm-webhook/internal/llm"
	"crm-webhook/internal/metrics"
	"crm-webhook/internal/queue"
	"crm-webhook/internal/webhook"
	"crm-webhook/pkg/logger"
)

// UnknownStatus labels telephony leads whose CRM status could not be read.
const UnknownStatus = "Unknown"

var errNoElementID = errors.New("pipeline: event has no lead element id")

type Persister interface {
	Persist(ctx context.Context, b leads.Bundle) (leads.Result, error)
}

type Permissions interface {
	ManagerPermitted(ctx context.Context, managerID int64) (bool, error)
}

type LeadStatusClient interface {
	LeadStatus(ctx context.Context, domain string, leadID int64) (string, error)
}

type NoteClient interface {
	PostNote(ctx context.Context, domain string, leadID int64, text string) error
}

type AudioFetcher interface {
	Fetch(ctx context.Context, url, name string) (string, error)
	Remove(path string) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, transcript string, tmpl llm.Template) (string, error)
}

type AnalysisRecorder interface {
	RecordDenied(ctx context.Context, leadID int64, transcript string) (analysis.Analysis, error)
	RecordAnalysed(ctx context.Context, leadID int64, transcript, answer string) (analysis.Analysis, error)
}

type AssistantSource interface {
	ActiveAssistant(ctx context.Context) (analysis.Assistant, error)
}

// Deps are the collaborators of an Orchestrator. All are required except Metrics.
type Deps struct {
	Persister   Persister
	Permissions Permissions
	LeadStatus  LeadStatusClient
	Notes       NoteClient
	Audio       AudioFetcher
	Transcriber Transcriber
	Analyzer    Analyzer
	Recorder    AnalysisRecorder
	Assistants  AssistantSource
	Metrics     *metrics.Metrics
}

type Orchestrator struct {
	d   Deps
	now func() time.Time
}

func New(d Deps) (*Orchestrator, error) {
	switch {
	case d.Persister == nil, d.Permissions == nil:
		return nil, errors.New("pipeline: persistence not configured")
	case d.LeadStatus == nil, d.Notes == nil:
		return nil, errors.New("pipeline: crm client not configured")
	case d.Audio == nil, d.Transcriber == nil, d.Analyzer == nil:
		return nil, errors.New("pipeline: audio/llm not configured")
	case d.Recorder == nil, d.Assistants == nil:
		return nil, errors.New("pipeline: analysis store not configured")
	}
	return &Orchestrator{d: d, now: time.Now}, nil
}

// Handle adapts Process to a queue worker.
func (o *Orchestrator) Handle(ctx context.Context, job queue.Job) error {
	o.d.Metrics.JobStarted()
	defer o.d.Metrics.JobFinished()

	outcome, err := o.Process(ctx, job.Body)
	logger.From(ctx).Info("event processed",
		"outcome", string(outcome),
		"queued_ms", o.now().Sub(job.ReceivedAt).Milliseconds(),
	)
	return err
}

// Process runs one admitted webhook body to completion. A failure aborts
// only this event and is returned as a *StageError.
func (o *Orchestrator) Process(ctx context.Context, raw []byte) (outcome Outcome, err error) {
	start := o.now()
	log := logger.From(ctx)
	defer func() {
		o.d.Metrics.RecordPipeline(string(outcome), o.now().Sub(start))
		var se *StageError
		if errors.As(err, &se) {
			log.Error("pipeline stage failed",
				"stage", string(se.Stage),
				"status_code", StatusCode(se.Err),
				"err", se.Err,
			)
		}
	}()

	flat, err := webhook.Decode(raw)
	if err := o.record(StageDecode, err); err != nil {
		return OutcomeFailed, err
	}
	kind := webhook.Classify(flat)
	dl, _ := webhook.ExtractDownload(flat, kind)
	if dl.ElementID != nil {
		log = log.With("element_id", *dl.ElementID)
	}
	log = log.With("kind", kind.String())
	ctx = logger.With(ctx, log)

	status := ""
	if kind == webhook.KindTelephony {
		status = o.leadStatus(ctx, log, dl)
	}

	bundle := webhook.Map(flat, kind, status)
	res, err := o.d.Persister.Persist(ctx, bundle)
	if err := o.record(StagePersist, err); err != nil {
		return OutcomeFailed, err
	}
	// Without UNIQ the recording is named after the stored call.
	if dl.Filename == "" && bundle.Call != nil {
		dl.Filename = bundle.Call.UniqueUUID
	}
	log = log.With("lead_id", res.LeadID)
	ctx = logger.With(ctx, log)

	if kind != webhook.KindTelephony || dl.AudioURL == "" {
		log.Info("event stored", "call_id", res.CallID)
		return OutcomeStored, nil
	}

	transcript, err := o.transcribe(ctx, log, dl)
	if err != nil {
		return OutcomeFailed, err
	}

	permitted, err := o.d.Permissions.ManagerPermitted(ctx, res.ManagerID)
	if err := o.record(StagePermission, err); err != nil {
		return OutcomeFailed, err
	}
	if !permitted {
		_, err := o.d.Recorder.RecordDenied(ctx, res.LeadID, transcript)
		if err := o.record(StageRecord, err); err != nil {
			return OutcomeFailed, err
		}
		log.Info("manager not permitted, analysis skipped", "manager_id", res.ManagerID)
		return OutcomePermissionDenied, nil
	}

	assistant, err := o.d.Assistants.ActiveAssistant(ctx)
	if errors.Is(err, analysis.ErrNotFound) {
		log.Warn("no active assistant, analysis skipped")
		return OutcomeNoAssistant, nil
	}
	if err := o.record(StageAssistant, err); err != nil {
		return OutcomeFailed, err
	}

	answer, err := o.d.Analyzer.Analyze(ctx, transcript, llm.Template{
		Instructions: assistant.Instructions,
		Model:        assistant.Model,
	})
	if err := o.record(StageAnalyze, err); err != nil {
		return OutcomeFailed, err
	}

	_, err = o.d.Recorder.RecordAnalysed(ctx, res.LeadID, transcript, answer)
	if err := o.record(StageRecord, err); err != nil {
		return OutcomeFailed, err
	}

	if res.LeadElementID == nil {
		return OutcomeFailed, o.record(StageNotify, errNoElementID)
	}
	err = o.d.Notes.PostNote(ctx, dl.Domain, *res.LeadElementID, answer)
	if err := o.record(StageNotify, err); err != nil {
		return OutcomeFailed, err
	}

	log.Info("analysis posted", "assistant_id", assistant.ID)
	return OutcomeDone, nil
}

// leadStatus never fails the event: any lookup problem yields UnknownStatus.
func (o *Orchestrator) leadStatus(ctx context.Context, log *slog.Logger, dl webhook.Download) string {
	if dl.ElementID == nil {
		return UnknownStatus
	}
	status, err := o.d.LeadStatus.LeadStatus(ctx, dl.Domain, *dl.ElementID)
	o.d.Metrics.RecordStage(string(StageLeadStatus), err == nil)
	if err != nil {
		log.Warn("lead status lookup failed",
			"stage", string(StageLeadStatus),
			"status_code", StatusCode(err),
			"err", err,
		)
		return UnknownStatus
	}
	return status
}

func (o *Orchestrator) transcribe(ctx context.Context, log *slog.Logger, dl webhook.Download) (string, error) {
	path, err := o.d.Audio.Fetch(ctx, dl.AudioURL, dl.Filename)
	if err := o.record(StageFetch, err); err != nil {
		return "", err
	}
	defer func() {
		if err := o.d.Audio.Remove(path); err != nil {
			log.Warn("audio cleanup failed", "path", path, "err", err)
		}
	}()

	text, err := o.d.Transcriber.Transcribe(ctx, path)
	if err := o.record(StageTranscribe, err); err != nil {
		return "", err
	}
	return text, nil
}

func (o *Orchestrator) record(st Stage, err error) error {
	o.d.Metrics.RecordStage(string(st), err == nil)
	if err != nil {
		return &StageError{Stage: st, Err: err}
	}
	return nil
}
