package reporting

import (
	"context"
	"sync"

	"crm-webhook/internal/analysis"
	"crm-webhook/internal/leads"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
type MemoryRepo struct {
	mu sync.Mutex

	Integrations []leads.Integration
	Managers     []leads.Manager
	Leads        []Lead
	Calls        []leads.Call
	CallLeads    []leads.CallLeadLink
	Analyses     []analysis.Analysis
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListIntegrations(context.Context) ([]leads.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]leads.Integration{}, r.Integrations...), nil
}

func (r *MemoryRepo) ListManagers(context.Context) ([]leads.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]leads.Manager{}, r.Managers...), nil
}

func (r *MemoryRepo) ListLeads(context.Context) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Lead{}, r.Leads...), nil
}

func (r *MemoryRepo) ListCalls(context.Context) ([]leads.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]leads.Call{}, r.Calls...), nil
}

func (r *MemoryRepo) ListCallLeads(context.Context) ([]leads.CallLeadLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]leads.CallLeadLink{}, r.CallLeads...), nil
}

func (r *MemoryRepo) ListAnalyses(context.Context) ([]analysis.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]analysis.Analysis{}, r.Analyses...), nil
}
