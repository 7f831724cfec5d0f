package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-ai/daybook/internal/config"
)

func TestDefaultEventRules(t *testing.T) {
	rules := config.DefaultEventRules()

	assert.Equal(t, []string{"items"}, rules.Rule("meal").Require)
	assert.Equal(t, []string{"from", "to"}, rules.Rule("commute").Require)
	assert.Equal(t, []string{"exercises", "device_link"}, rules.Rule("workout").AnyOf)
	assert.Empty(t, rules.Rule("generic").Require, "unknown types have no requirements")
}

func TestMissingFields(t *testing.T) {
	rules := config.DefaultEventRules()

	cases := []struct {
		name      string
		eventType string
		fields    map[string]any
		want      []string
	}{
		{
			name:      "meal_without_items",
			eventType: "meal",
			fields:    map[string]any{"start": "12:30"},
			want:      []string{"items"},
		},
		{
			name:      "meal_with_empty_items",
			eventType: "meal",
			fields:    map[string]any{"items": []string{}},
			want:      []string{"items"},
		},
		{
			name:      "meal_complete",
			eventType: "meal",
			fields:    map[string]any{"items": []string{"salad"}},
			want:      nil,
		},
		{
			name:      "commute_missing_both",
			eventType: "commute",
			fields:    map[string]any{},
			want:      []string{"from", "to"},
		},
		{
			name:      "commute_missing_one",
			eventType: "commute",
			fields:    map[string]any{"from": "home"},
			want:      []string{"to"},
		},
		{
			name:      "workout_any_of_unsatisfied",
			eventType: "workout",
			fields:    map[string]any{"start": "07:00"},
			want:      []string{"device_link", "exercises"},
		},
		{
			name:      "workout_any_of_satisfied_by_device_link",
			eventType: "workout",
			fields:    map[string]any{"device_link": "fitbit:run-1"},
			want:      nil,
		},
		{
			name:      "empty_string_counts_as_absent",
			eventType: "commute",
			fields:    map[string]any{"from": "", "to": "office"},
			want:      []string{"from"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := rules.MissingFields(tc.eventType, tc.fields)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadEventRulesMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
meal:
  require: [items, location]
social:
  require: [people]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := config.LoadEventRules(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"items", "location"}, rules.Rule("meal").Require, "file overrides default")
	assert.Equal(t, []string{"people"}, rules.Rule("social").Require, "file adds new type")
	assert.Equal(t, []string{"from", "to"}, rules.Rule("commute").Require, "untouched default survives")
}

func TestLoadEventRulesMissingFileIsDefaults(t *testing.T) {
	rules, err := config.LoadEventRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"items"}, rules.Rule("meal").Require)
}

func TestReloadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("meal: [not-a-rule"), 0o600))

	rules := config.DefaultEventRules()
	err := rules.Reload(path)
	assert.Error(t, err)
	assert.Equal(t, []string{"items"}, rules.Rule("meal").Require, "table unchanged on parse failure")
}
