package pipeline

import (
	"database/sql"
	"fmt"
	"net/http"

	"crm-webhook/internal/analysis"
	"crm-webhook/internal/audio"
	"crm-webhook/internal/config"
	"crm-webhook/internal/crm"
	"crm-webhook/internal/leads"
	"crm-webhook/internal/llm"
	"crm-webhook/internal/metrics"
)

// Build assembles an Orchestrator backed by db and the configured CRM and
// OpenAI endpoints. hc, when non-nil, carries every outbound request.
func Build(cfg config.Config, db *sql.DB, m *metrics.Metrics, hc *http.Client) (*Orchestrator, error) {
	if db == nil {
		return nil, fmt.Errorf("pipeline: database required")
	}

	fetcher, err := audio.NewFetcher(audio.Config{
		Dir:        cfg.Pipeline.AudioDir,
		Timeout:    cfg.Pipeline.AudioTimeout,
		MaxBytes:   cfg.Pipeline.AudioMaxBytes,
		HTTPClient: hc,
	})
	if err != nil {
		return nil, err
	}

	store := leads.NewService(db)
	results := analysis.NewService(analysis.NewSQLRepo(db))
	crmClient := crm.NewClient(crm.Config{
		BaseURL:               cfg.CRM.BaseURL,
		AccessToken:           cfg.CRM.AccessToken,
		Timeout:               cfg.CRM.Timeout,
		AllowedDomainSuffixes: cfg.CRM.AllowedDomainSuffixes,
		HTTPClient:            hc,
	})
	ai := llm.NewClient(llm.Config{
		APIKey:             cfg.OpenAI.APIKey,
		BaseURL:            cfg.OpenAI.BaseURL,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
		AnalysisModel:      cfg.OpenAI.AnalysisModel,
		Timeout:            cfg.OpenAI.Timeout,
		HTTPClient:         hc,
	})

	return New(Deps{
		Persister:   store,
		Permissions: store,
		LeadStatus:  crmClient,
		Notes:       crmClient,
		Audio:       fetcher,
		Transcriber: ai,
		Analyzer:    ai,
		Recorder:    results,
		Assistants:  results,
		Metrics:     m,
	})
}
