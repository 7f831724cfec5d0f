package types_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daybook-ai/daybook/pkg/types"
)

func ts(h, m int) time.Time {
	return time.Date(2026, 3, 14, h, m, 0, 0, time.UTC)
}

func tsPtr(h, m int) *time.Time {
	t := ts(h, m)
	return &t
}

func TestCovers(t *testing.T) {
	block := types.TimeBlock{Start: ts(9, 0), End: tsPtr(10, 0)}

	assert.True(t, block.Covers(ts(9, 0)), "start is inclusive")
	assert.True(t, block.Covers(ts(9, 59)))
	assert.False(t, block.Covers(ts(10, 0)), "end is exclusive")
	assert.False(t, block.Covers(ts(8, 59)))
}

func TestCoversOpenEnded(t *testing.T) {
	block := types.TimeBlock{Start: ts(22, 0)}
	assert.False(t, block.Covers(ts(23, 0)),
		"open-ended block must not cover any timestamp")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		block   types.TimeBlock
		wantErr bool
	}{
		{
			name:  "valid_device_block",
			block: types.TimeBlock{Start: ts(9, 0), End: tsPtr(10, 0), Source: types.SourceDevice, Confidence: types.ConfidenceHigh},
		},
		{
			name:    "missing_start",
			block:   types.TimeBlock{Source: types.SourceDevice, Confidence: types.ConfidenceHigh},
			wantErr: true,
		},
		{
			name:    "end_before_start",
			block:   types.TimeBlock{Start: ts(10, 0), End: tsPtr(9, 0), Source: types.SourceDevice, Confidence: types.ConfidenceHigh},
			wantErr: true,
		},
		{
			name:    "store_block_must_be_high_confidence",
			block:   types.TimeBlock{Start: ts(9, 0), Source: types.SourceStore, Confidence: types.ConfidenceMedium},
			wantErr: true,
		},
		{
			name:  "store_block_high_confidence",
			block: types.TimeBlock{Start: ts(9, 0), Source: types.SourceStore, Confidence: types.ConfidenceHigh},
		},
		{
			name:    "inferred_block_with_external_id",
			block:   types.TimeBlock{Start: ts(9, 0), Source: types.SourceInferred, Confidence: types.ConfidenceMedium, ExternalID: "x1"},
			wantErr: true,
		},
		{
			name:  "open_ended_sleep",
			block: types.TimeBlock{Start: ts(22, 30), Type: types.BlockTypeSleep, Source: types.SourceDevice, Confidence: types.ConfidenceHigh},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.block.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsValidBlockType(t *testing.T) {
	for _, bt := range types.ValidBlockTypes {
		assert.True(t, types.IsValidBlockType(bt), bt)
	}
	assert.False(t, types.IsValidBlockType("nap"))
	assert.False(t, types.IsValidBlockType(""))
}

func TestDayHelpers(t *testing.T) {
	noon := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), types.DayStart(noon))
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), types.DayEnd(noon))
	assert.True(t, types.SameDay(noon, types.DayStart(noon)))
	assert.False(t, types.SameDay(noon, types.DayEnd(noon)))
}
