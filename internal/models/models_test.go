package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedRelevance(t *testing.T) {
	tests := []struct {
		name       string
		confidence int
		relevance  int
		want       float64
	}{
		{"max confidence keeps relevance", 4, 3, 3},
		{"half confidence halves it", 2, 4, 2},
		{"low confidence low relevance", 1, 1, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Analytic{Confidence: tt.confidence, Relevance: tt.relevance}
			assert.Equal(t, tt.want, a.WeightedRelevance())
		})
	}
}

func TestValidate(t *testing.T) {
	a := &Analytic{Query: "EventType = 'x'"}
	assert.NoError(t, a.Validate())

	a.Query = "   "
	assert.ErrorIs(t, a.Validate(), ErrEmptyQuery)
}

func TestSetStatusClearsRunDaily(t *testing.T) {
	for _, status := range []AnalyticStatus{StatusArchived, StatusPending} {
		a := &Analytic{RunDaily: true}
		a.SetStatus(status)
		assert.Equal(t, status, a.Status)
		assert.False(t, a.RunDaily, "status %s must stop daily runs", status)
	}

	a := &Analytic{RunDaily: true}
	a.SetStatus(StatusPublished)
	assert.True(t, a.RunDaily)
}

func TestEligible(t *testing.T) {
	a := &Analytic{RunDaily: true, Status: StatusPublished}
	assert.True(t, a.Eligible())

	a.Status = StatusArchived
	assert.False(t, a.Eligible())

	a = &Analytic{RunDaily: false, Status: StatusDraft}
	assert.False(t, a.Eligible())

	// Pending analytics with the flag still set run; only ARCH is excluded
	// by status.
	a = &Analytic{RunDaily: true, Status: StatusPending}
	assert.True(t, a.Eligible())
}

func TestDailyCampaignNameRoundTrip(t *testing.T) {
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	name := DailyCampaignName(date)
	assert.Equal(t, "daily_cron_2026-08-28", name)

	parsed, err := ParseDailyCampaignDate(name)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(date))

	_, err = ParseDailyCampaignDate("regenerate_stats_x_2026-08-28-10-00")
	assert.Error(t, err)

	_, err = ParseDailyCampaignDate("daily_cron_notadate")
	assert.Error(t, err)
}

func TestRegenCampaignName(t *testing.T) {
	at := time.Date(2026, 8, 28, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, "regenerate_stats_susp-ps_2026-08-28-14-05", RegenCampaignName("susp-ps", at))
}

func TestTrimStoryline(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"quoted id loses delimiters", `"01923FA8B3"`, "01923FA8B3"},
		{"empty input", "", ""},
		{"single char", "x", ""},
		{"two chars collapse to empty", `""`, ""},
		{"at length cap dropped entirely", strings.Repeat("a", StorylineMaxLen), ""},
		{"just under cap is trimmed", strings.Repeat("a", StorylineMaxLen-1), strings.Repeat("a", StorylineMaxLen-3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimStoryline(tt.raw))
		})
	}
}
