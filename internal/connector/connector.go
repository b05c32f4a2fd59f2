// Package connector defines the capability contract data-source plugins
// implement, and a static registry bound at process start from explicit
// configuration.
package connector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

// Row is one matching host returned by a connector query.
type Row struct {
	Hostname string
	Site     string
	// EventCount is the number of matching events on this host.
	EventCount int64
	// StorylineIDs is the raw correlation-id list, delimiters included.
	StorylineIDs string
}

// Connector executes an analytic's query against one data source over a
// detection window. A non-nil error is a hard failure and aborts the rest of
// the campaign run. An empty row slice is a legitimate zero-hit result.
// Connectors that degrade softly record the analytic's error fields through
// an ErrorRecorder and return no rows with a nil error.
type Connector interface {
	Query(ctx context.Context, a *models.Analytic, from, to time.Time) ([]Row, error)
}

// ErrorRecorder persists an analytic's query-error state. Connectors call it
// on soft failures; the campaign loop never sets these fields itself.
type ErrorRecorder interface {
	RecordQueryError(ctx context.Context, a *models.Analytic, message string) error
}

// RuleSyncer is an optional capability: connectors that mirror analytics as
// remote detection rules implement it, and the analytic lifecycle operations
// call it whenever the create_rule flag or query text changes.
type RuleSyncer interface {
	NeedToSyncRule() bool
	CreateRule(ctx context.Context, a *models.Analytic) error
	UpdateRule(ctx context.Context, a *models.Analytic) error
	DeleteRule(ctx context.Context, a *models.Analytic) error
}

// Registry maps connector names to implementations. It is populated once at
// startup; there is no runtime discovery.
type Registry struct {
	connectors map[string]Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

func (r *Registry) Register(name string, c Connector) {
	r.connectors[name] = c
}

func (r *Registry) Get(name string) (Connector, error) {
	c, ok := r.connectors[name]
	if !ok {
		return nil, fmt.Errorf("unknown connector %q", name)
	}
	return c, nil
}

// Names returns the registered connector names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SyncerFor returns the rule-sync capability of a connector when it has one
// and reports wanting sync.
func (r *Registry) SyncerFor(name string) (RuleSyncer, bool) {
	c, ok := r.connectors[name]
	if !ok {
		return nil, false
	}
	syncer, ok := c.(RuleSyncer)
	if !ok || !syncer.NeedToSyncRule() {
		return nil, false
	}
	return syncer, true
}
