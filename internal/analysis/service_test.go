package analysis

import (
	"context"
	"testing"
	"time"

	"crm-webhook/internal/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RecordDenied(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	a, err := svc.RecordDenied(context.Background(), 7, "hello there")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.False(t, a.IsAnalysed)
	assert.Nil(t, a.AnalysedText)
	assert.False(t, a.CreatedAt.IsZero())

	got := repo.Analyses()
	require.Len(t, got, 1)
	assert.Equal(t, "hello there", got[0].AudioText)
}

func TestService_RecordAnalysed(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	_, err := svc.RecordAnalysed(context.Background(), 7, "transcript", "  ")
	assert.ErrorIs(t, err, ErrInvalidRecord)

	a, err := svc.RecordAnalysed(context.Background(), 7, "transcript", "summary")
	require.NoError(t, err)
	assert.True(t, a.IsAnalysed)
	require.NotNil(t, a.AnalysedText)
	assert.Equal(t, "summary", *a.AnalysedText)
}

func TestService_RequiresLead(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	_, err := svc.RecordDenied(context.Background(), 0, "x")
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestService_ActiveAssistant(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	_, err := svc.ActiveAssistant(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	repo.AddAssistant(Assistant{Name: "old", Instructions: "a", IsActive: true})
	repo.AddAssistant(Assistant{Name: "new", Instructions: "b", IsActive: true})
	repo.AddAssistant(Assistant{Name: "draft", Instructions: "c"})

	a, err := svc.ActiveAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", a.Name)
}

func TestService_NoRepo(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.RecordDenied(context.Background(), 1, "x")
	assert.Error(t, err)
	_, err = svc.ActiveAssistant(context.Background())
	assert.Error(t, err)
}

func TestSQLRepo(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO integrations (subdomain) VALUES ('acme')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO managers (crm_user_id) VALUES (1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO leads (manager_id, integration_id) VALUES (1, 1)`)
	require.NoError(t, err)

	repo := NewSQLRepo(db)
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	_, err = svc.ActiveAssistant(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = repo.CreateAssistant(ctx, Assistant{Name: "v1", Instructions: "be brief", IsActive: true, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = repo.CreateAssistant(ctx, Assistant{Name: "v2", Instructions: "be thorough", Model: "gpt-4o", IsActive: true, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	a, err := svc.ActiveAssistant(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", a.Name)
	assert.Equal(t, "gpt-4o", a.Model)
	assert.True(t, a.IsActive)

	denied, err := svc.RecordDenied(ctx, 1, "text")
	require.NoError(t, err)
	assert.NotZero(t, denied.ID)
	_, err = svc.RecordAnalysed(ctx, 1, "text", "answer")
	require.NoError(t, err)

	var analysed int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM analyses WHERE is_analysed = 1 AND analysed_text = 'answer'`).Scan(&analysed))
	assert.Equal(t, 1, analysed)
	assert.Equal(t, 2, dbtest.Count(t, db, "analyses"))
}
