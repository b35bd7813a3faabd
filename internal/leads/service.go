package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crm-webhook/pkg/logger"
	"crm-webhook/pkg/utils"
)

var (
	ErrNotFound = errors.New("leads: not found")
	// ErrMissingDependency means a Lead or CallLeadLink was attempted
	// without the rows it references. The whole event is rolled back.
	ErrMissingDependency = errors.New("leads: missing dependency")
	ErrInvalidArgument   = errors.New("leads: invalid argument")

	errConflict = errors.New("leads: concurrent insert")
)

// Service persists webhook bundles.
//
// Invariants:
// - One transaction per bundle; any failure leaves no rows behind.
// - A Lead needs a resolved Manager and Integration.
// - A CallLeadLink needs a persisted Call and Lead.
// - Managers and Integrations are reused by business key, never duplicated.
type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

// Persist writes the bundle in dependency order and returns the ids the
// rest of the pipeline needs.
func (s *Service) Persist(ctx context.Context, b Bundle) (Result, error) {
	var res Result
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		res = Result{}

		if b.Integration != nil {
			id, err := upsertIntegration(ctx, tx, *b.Integration)
			if err != nil {
				return fmt.Errorf("integration: %w", err)
			}
			res.IntegrationID = id
		}

		if b.Manager != nil {
			id, err := upsertManager(ctx, tx, *b.Manager)
			if err != nil {
				return fmt.Errorf("manager: %w", err)
			}
			res.ManagerID = id
		}

		if b.Lead != nil {
			if res.ManagerID == 0 {
				return fmt.Errorf("%w: lead requires a manager", ErrMissingDependency)
			}
			if res.IntegrationID == 0 {
				return fmt.Errorf("%w: lead requires an integration", ErrMissingDependency)
			}
			lead := *b.Lead
			lead.ManagerID = res.ManagerID
			lead.IntegrationID = res.IntegrationID
			id, err := insertLead(ctx, tx, lead)
			if err != nil {
				return fmt.Errorf("lead: %w", err)
			}
			res.LeadID = id
			res.LeadElementID = lead.ElementID
		}

		if b.Call != nil {
			id, err := insertCall(ctx, tx, *b.Call)
			if err != nil {
				return fmt.Errorf("call: %w", err)
			}
			res.CallID = id
		}

		if b.Link != nil {
			if res.CallID == 0 || res.LeadID == 0 {
				return fmt.Errorf("%w: call link requires a call and a lead", ErrMissingDependency)
			}
			link := CallLeadLink{CallID: res.CallID, LeadID: res.LeadID, LastUpdate: s.clock().UTC()}
			if err := insertCallLead(ctx, tx, link); err != nil {
				return fmt.Errorf("call link: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.From(ctx).Debug("bundle persisted",
		"integration_id", res.IntegrationID,
		"manager_id", res.ManagerID,
		"lead_id", res.LeadID,
		"call_id", res.CallID,
	)
	return res, nil
}

// ManagerPermitted reports whether analysis may run for the manager.
// Unknown managers (including id 0) are not permitted.
func (s *Service) ManagerPermitted(ctx context.Context, managerID int64) (bool, error) {
	if managerID == 0 {
		return false, nil
	}
	ok, err := managerPermitted(ctx, s.db, managerID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return ok, err
}

// SetManagerPermission toggles analysis for a CRM user. Operator action.
func (s *Service) SetManagerPermission(ctx context.Context, crmUserID int64, permitted bool) error {
	if crmUserID == 0 {
		return ErrInvalidArgument
	}
	return setManagerPermission(ctx, s.db, crmUserID, permitted)
}

func upsertIntegration(ctx context.Context, q utils.Querier, in Integration) (int64, error) {
	if in.Subdomain == "" {
		return 0, ErrInvalidArgument
	}
	id, err := findIntegrationID(ctx, q, in.Subdomain)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	id, err = insertIntegration(ctx, q, in)
	if errors.Is(err, errConflict) {
		return findIntegrationID(ctx, q, in.Subdomain)
	}
	return id, err
}

func upsertManager(ctx context.Context, q utils.Querier, m Manager) (int64, error) {
	id, err := findManagerID(ctx, q, m.CRMUserID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	id, err = insertManager(ctx, q, m)
	if errors.Is(err, errConflict) {
		return findManagerID(ctx, q, m.CRMUserID)
	}
	return id, err
}
