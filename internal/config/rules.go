package config

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// EventRule describes the completion requirements for one event type.
type EventRule struct {
	// Require lists fields that must all be present and non-empty.
	Require []string `yaml:"require"`

	// AnyOf lists fields of which at least one must be present. An empty
	// list imposes no any-of requirement.
	AnyOf []string `yaml:"any_of"`
}

// EventRules is the required-field table keyed by event type, used by the
// session manager to compute a partial event's missing fields. The table is
// safe for concurrent use; Reload swaps the table atomically.
type EventRules struct {
	mu    sync.RWMutex
	rules map[string]EventRule
}

// DefaultEventRules returns the built-in rules table:
//
//	meal     requires a non-empty item list
//	commute  requires both endpoint locations
//	workout  requires at least one exercise or a device link
//
// Every event type additionally requires a start time; that requirement is
// structural (a block cannot exist without one) and is not expressed here.
func DefaultEventRules() *EventRules {
	return &EventRules{rules: map[string]EventRule{
		"meal":    {Require: []string{"items"}},
		"commute": {Require: []string{"from", "to"}},
		"workout": {AnyOf: []string{"exercises", "device_link"}},
	}}
}

// LoadEventRules reads a rules table from a YAML file of the form:
//
//	meal:
//	  require: [items]
//	workout:
//	  any_of: [exercises, device_link]
//
// Rules from the file are merged over the built-in defaults, so a partial
// file only overrides the types it names.
func LoadEventRules(path string) (*EventRules, error) {
	er := DefaultEventRules()
	if err := er.Reload(path); err != nil {
		return nil, err
	}
	return er, nil
}

// Reload re-reads the rules file and merges it over the current table.
// A missing file leaves the table unchanged.
func (er *EventRules) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: failed to read rules file %s: %w", path, err)
	}

	loaded := map[string]EventRule{}
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("config: failed to parse rules file %s: %w", path, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()
	for eventType, rule := range loaded {
		er.rules[eventType] = rule
	}
	return nil
}

// Rule returns the rule for the given event type. Unknown event types have
// no requirements beyond a start time.
func (er *EventRules) Rule(eventType string) EventRule {
	er.mu.RLock()
	defer er.mu.RUnlock()
	return er.rules[eventType]
}

// MissingFields computes which required fields are absent from the given
// field map. A field counts as present when it exists and is not an empty
// string, empty slice, or nil. The result is sorted for determinism.
func (er *EventRules) MissingFields(eventType string, fields map[string]any) []string {
	rule := er.Rule(eventType)

	var missing []string
	for _, name := range rule.Require {
		if !fieldPresent(fields, name) {
			missing = append(missing, name)
		}
	}
	if len(rule.AnyOf) > 0 {
		satisfied := false
		for _, name := range rule.AnyOf {
			if fieldPresent(fields, name) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			missing = append(missing, rule.AnyOf...)
		}
	}
	sort.Strings(missing)
	return missing
}

func fieldPresent(fields map[string]any, name string) bool {
	v, ok := fields[name]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case []string:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
