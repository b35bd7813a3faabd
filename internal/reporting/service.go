package reporting

import (
	"context"
	"errors"
	"time"

	"crm-webhook/internal/analysis"
	"crm-webhook/internal/leads"
)

// Repository abstracts data access for reporting. All methods are reads.
type Repository interface {
	ListIntegrations(ctx context.Context) ([]leads.Integration, error)
	ListManagers(ctx context.Context) ([]leads.Manager, error)
	ListLeads(ctx context.Context) ([]Lead, error)
	ListCalls(ctx context.Context) ([]leads.Call, error)
	ListCallLeads(ctx context.Context) ([]leads.CallLeadLink, error)
	ListAnalyses(ctx context.Context) ([]analysis.Analysis, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

// Export reads every table and summarises it.
func (s *Service) Export(ctx context.Context) (Snapshot, error) {
	if s.repo == nil {
		return Snapshot{}, errors.New("reporting: repository not configured")
	}

	var (
		out Snapshot
		err error
	)
	if out.Integrations, err = s.repo.ListIntegrations(ctx); err != nil {
		return Snapshot{}, err
	}
	if out.Managers, err = s.repo.ListManagers(ctx); err != nil {
		return Snapshot{}, err
	}
	if out.Leads, err = s.repo.ListLeads(ctx); err != nil {
		return Snapshot{}, err
	}
	if out.Calls, err = s.repo.ListCalls(ctx); err != nil {
		return Snapshot{}, err
	}
	if out.CallLeads, err = s.repo.ListCallLeads(ctx); err != nil {
		return Snapshot{}, err
	}
	if out.Analyses, err = s.repo.ListAnalyses(ctx); err != nil {
		return Snapshot{}, err
	}

	out.GeneratedAt = s.clock().UTC()
	out.Summary = summarize(out)
	return out, nil
}

func summarize(s Snapshot) Summary {
	out := Summary{
		Integrations: len(s.Integrations),
		Managers:     len(s.Managers),
		Leads:        len(s.Leads),
		Calls:        len(s.Calls),
		Analyses:     len(s.Analyses),
	}
	for _, m := range s.Managers {
		if m.IsPermitted {
			out.PermittedManagers++
		}
	}
	for _, l := range s.Leads {
		if l.TextMessage != nil {
			out.MessageLeads++
		} else {
			out.TelephonyLeads++
		}
	}
	for _, c := range s.Calls {
		if c.AudioMP3 != nil && *c.AudioMP3 != "" {
			out.RecordedCalls++
		}
		if c.Duration != nil {
			out.TotalDurationSeconds += *c.Duration
		}
	}
	if out.Calls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / int64(out.Calls)
	}
	for _, a := range s.Analyses {
		if a.IsAnalysed {
			out.Analysed++
		} else {
			out.Denied++
		}
	}
	return out
}
