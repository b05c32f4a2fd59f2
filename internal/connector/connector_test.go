package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

type fakeConnector struct {
	rows     []Row
	err      error
	syncRule bool
}

func (f *fakeConnector) Query(ctx context.Context, a *models.Analytic, from, to time.Time) ([]Row, error) {
	return f.rows, f.err
}

func (f *fakeConnector) NeedToSyncRule() bool { return f.syncRule }

func (f *fakeConnector) CreateRule(ctx context.Context, a *models.Analytic) error { return nil }
func (f *fakeConnector) UpdateRule(ctx context.Context, a *models.Analytic) error { return nil }
func (f *fakeConnector) DeleteRule(ctx context.Context, a *models.Analytic) error { return nil }

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry()
	fc := &fakeConnector{}
	reg.Register("opensearch", fc)

	got, err := reg.Get("opensearch")
	require.NoError(t, err)
	assert.Same(t, Connector(fc), got)

	_, err = reg.Get("missing")
	assert.ErrorContains(t, err, `unknown connector "missing"`)
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register("sql", &fakeConnector{})
	reg.Register("opensearch", &fakeConnector{})

	assert.Equal(t, []string{"opensearch", "sql"}, reg.Names())
}

func TestRegistrySyncerFor(t *testing.T) {
	reg := NewRegistry()
	reg.Register("syncing", &fakeConnector{syncRule: true})
	reg.Register("plain", &fakeConnector{syncRule: false})

	syncer, ok := reg.SyncerFor("syncing")
	assert.True(t, ok)
	assert.NotNil(t, syncer)

	_, ok = reg.SyncerFor("plain")
	assert.False(t, ok)

	_, ok = reg.SyncerFor("missing")
	assert.False(t, ok)
}

func TestNormalizeDriver(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"postgres", "postgres", true},
		{"PostgreSQL", "postgres", true},
		{"mysql", "mysql", true},
		{"mssql", "sqlserver", true},
		{"sqlserver", "sqlserver", true},
		{"", "", false},
		{"oracle", "", false},
	}
	for _, tc := range tests {
		got, err := normalizeDriver(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}
