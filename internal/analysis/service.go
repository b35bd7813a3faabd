package analysis

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("analysis: not found")
	ErrInvalidRecord     = errors.New("analysis: invalid record")
	errRepoNotConfigured = errors.New("analysis: repository not configured")
)

// Repository is the persistence contract for analyses and assistants.
// Analyses are append-only; there is no Update/Delete.
type Repository interface {
	Append(ctx context.Context, a Analysis) (int64, error)
	ActiveAssistant(ctx context.Context) (Assistant, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) append(ctx context.Context, a Analysis) (Analysis, error) {
	if s.repo == nil {
		return Analysis{}, errRepoNotConfigured
	}
	if a.LeadID == 0 {
		return Analysis{}, ErrInvalidRecord
	}
	if a.IsAnalysed && a.AnalysedText == nil {
		return Analysis{}, ErrInvalidRecord
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock().UTC()
	}
	id, err := s.repo.Append(ctx, a)
	if err != nil {
		return Analysis{}, err
	}
	a.ID = id
	return a, nil
}

// RecordDenied stores the transcript of a lead whose manager is not
// permitted to receive analyses.
func (s *Service) RecordDenied(ctx context.Context, leadID int64, transcript string) (Analysis, error) {
	return s.append(ctx, Analysis{LeadID: leadID, AudioText: transcript})
}

// RecordAnalysed stores the transcript with the analyzer's answer.
func (s *Service) RecordAnalysed(ctx context.Context, leadID int64, transcript, answer string) (Analysis, error) {
	if strings.TrimSpace(answer) == "" {
		return Analysis{}, ErrInvalidRecord
	}
	return s.append(ctx, Analysis{LeadID: leadID, AudioText: transcript, AnalysedText: &answer, IsAnalysed: true})
}

// ActiveAssistant returns the template used for analysis, ErrNotFound when
// no assistant is active.
func (s *Service) ActiveAssistant(ctx context.Context) (Assistant, error) {
	if s.repo == nil {
		return Assistant{}, errRepoNotConfigured
	}
	return s.repo.ActiveAssistant(ctx)
}
