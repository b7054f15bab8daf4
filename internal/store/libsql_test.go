package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/attackchain/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDoc(name string, sev schema.Severity, nodes int) *schema.ChainDocument {
	doc := &schema.ChainDocument{
		Version:  schema.DocumentVersion,
		ID:       uuid.New().String(),
		Name:     name,
		Viewport: schema.ViewportState{Scale: 1},
	}
	for i := 0; i < nodes; i++ {
		doc.Nodes = append(doc.Nodes, schema.Node{
			ID:       uuid.New().String(),
			Order:    i + 1,
			Status:   schema.NodeStatusPending,
			Template: schema.TemplateRef{ID: "port_scanning", Severity: sev, EstimatedTime: schema.TimeRange{Min: 5, Max: 15}},
		})
	}
	return doc
}

func seedChain(t *testing.T, s *LibSQLStore, name string, sev schema.Severity, verdict schema.Verdict) *ChainRecord {
	t.Helper()
	doc := testDoc(name, sev, 2)
	rec := NewRecord(doc, schema.Stats{NodeCount: 2, TotalMinutes: 30, RiskLevel: sev}, verdict)
	require.NoError(t, s.SaveChain(context.Background(), rec))
	return rec
}

func TestLibsqlDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/var/lib/chains.db", "file:/var/lib/chains.db"},
		{"chains.db", "file:chains.db"},
		{"file:/tmp/chains.db", "file:/tmp/chains.db"},
		{"libsql://chains.turso.io", "libsql://chains.turso.io"},
		{"https://chains.example.com", "https://chains.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, libsqlDSN(tt.in), tt.in)
	}
}

func TestNewLibSQLStore_BarePath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bare.db")
	s, err := NewLibSQLStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	rec := seedChain(t, s, "bare", schema.SeverityHigh, schema.VerdictValid)
	got, err := s.GetChain(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "bare", got.Name)
	assert.FileExists(t, dbPath)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestSaveAndGetChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := seedChain(t, s, "web foothold", schema.SeverityHigh, schema.VerdictWarning)

	got, err := s.GetChain(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "web foothold", got.Name)
	assert.Equal(t, 2, got.NodeCount)
	assert.Equal(t, 30, got.TotalMinutes)
	assert.Equal(t, schema.SeverityHigh, got.RiskLevel)
	assert.Equal(t, schema.VerdictWarning, got.Verdict)
	assert.Equal(t, rec.Document, got.Document)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveChain_UpsertKeepsCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := seedChain(t, s, "v1", schema.SeverityLow, schema.VerdictError)
	first, err := s.GetChain(ctx, rec.ID)
	require.NoError(t, err)

	rec.Document.Name = "v2"
	rec.Name = "v2"
	rec.CreatedAt = first.CreatedAt.Add(1)
	require.NoError(t, s.SaveChain(ctx, rec))

	got, err := s.GetChain(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))
}

func TestSaveChain_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveChain(ctx, &ChainRecord{ID: "x"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	err = s.SaveChain(ctx, &ChainRecord{Document: &schema.ChainDocument{}})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestGetChain_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetChain(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestListChains_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedChain(t, s, "Web Foothold", schema.SeverityCritical, schema.VerdictValid)
	seedChain(t, s, "wifi recon", schema.SeverityHigh, schema.VerdictWarning)
	seedChain(t, s, "web audit", schema.SeverityHigh, schema.VerdictValid)

	all, err := s.ListChains(ctx, ChainFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	web, err := s.ListChains(ctx, ChainFilter{NameContains: "WEB"})
	require.NoError(t, err)
	assert.Len(t, web, 2)

	high, err := s.ListChains(ctx, ChainFilter{RiskLevel: schema.SeverityHigh, Verdict: schema.VerdictValid})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "web audit", high[0].Name)

	limited, err := s.ListChains(ctx, ChainFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := seedChain(t, s, "gone", schema.SeverityLow, schema.VerdictValid)

	require.NoError(t, s.DeleteChain(ctx, rec.ID))

	_, err := s.GetChain(ctx, rec.ID)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	revs, err := s.ListRevisions(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, revs)

	err = s.DeleteChain(ctx, rec.ID)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestRevisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := seedChain(t, s, "r", schema.SeverityLow, schema.VerdictValid)
	rec.Document.Nodes = rec.Document.Nodes[:1]
	rec.Reason = "autosave"
	require.NoError(t, s.SaveChain(ctx, rec))

	revs, err := s.ListRevisions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, int64(1), revs[0].Sequence)
	assert.Len(t, revs[0].Document.Nodes, 2)
	assert.Equal(t, int64(2), revs[1].Sequence)
	assert.Len(t, revs[1].Document.Nodes, 1)
	assert.Equal(t, "autosave", revs[1].Reason)

	rev, err := s.GetRevision(ctx, rec.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, rev.Reason)

	_, err = s.GetRevision(ctx, rec.ID, 9)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- only a comment;\nCREATE INDEX i ON a(x);")
	assert.Equal(t, []string{"-- header\nCREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, got)
}
