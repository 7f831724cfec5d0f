package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-ai/daybook/pkg/types"
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func block(kind string, start, end time.Time) types.TimeBlock {
	return types.TimeBlock{
		Type:       kind,
		Start:      start,
		End:        &end,
		Source:     types.SourceStore,
		Confidence: types.ConfidenceHigh,
	}
}

func clock(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestComputeGapsNoBlocks(t *testing.T) {
	assert.Nil(t, computeGaps(nil, day, time.Hour),
		"with no blocks there are no anchors to walk")
}

func TestComputeGapsInteriorOnly(t *testing.T) {
	// Two store blocks, 90 minutes apart, no sleep data. Exactly one gap;
	// the unanchored day edges are not reported.
	blocks := []types.TimeBlock{
		block(types.BlockTypeWork, clock(9, 0), clock(12, 30)),
		block(types.BlockTypeWork, clock(14, 0), clock(18, 0)),
	}

	gaps := computeGaps(blocks, day, time.Hour)

	require.Len(t, gaps, 1)
	assert.Equal(t, clock(12, 30), gaps[0].Start)
	assert.Equal(t, clock(14, 0), gaps[0].End)
	assert.Equal(t, 90, gaps[0].Minutes)
}

func TestComputeGapsBelowThresholdSuppressed(t *testing.T) {
	blocks := []types.TimeBlock{
		block(types.BlockTypeWork, clock(9, 0), clock(12, 0)),
		block(types.BlockTypeMeal, clock(13, 0), clock(13, 30)), // exactly 60 min after
	}
	assert.Empty(t, computeGaps(blocks, day, time.Hour),
		"a gap equal to the threshold is not reported")
}

func TestComputeGapsNestedBlockNoFabrication(t *testing.T) {
	// A short meal inside the work block must not open a gap between the
	// meal's end and the next block.
	blocks := []types.TimeBlock{
		block(types.BlockTypeWork, clock(9, 0), clock(17, 0)),
		block(types.BlockTypeMeal, clock(12, 0), clock(12, 30)),
		block(types.BlockTypeSocial, clock(18, 0), clock(19, 0)),
	}

	gaps := computeGaps(blocks, day, 30*time.Minute)

	require.Len(t, gaps, 1)
	assert.Equal(t, clock(17, 0), gaps[0].Start)
	assert.Equal(t, clock(18, 0), gaps[0].End)
}

func TestComputeGapsMidnightSleep(t *testing.T) {
	// Sleep spanning midnight into the next day stays one block and nothing
	// after it is assessed within this day's window.
	sleepEnd := day.AddDate(0, 0, 1).Add(6*time.Hour + 30*time.Minute)
	blocks := []types.TimeBlock{
		block(types.BlockTypeSleep, clock(22, 30), sleepEnd),
	}

	assert.Empty(t, computeGaps(blocks, day, time.Hour))
}

func TestComputeGapsSleepAnchoredEdges(t *testing.T) {
	// Last night's sleep ends 06:30 (wake anchor); tonight's starts 22:30
	// (bed anchor). Both day edges become reportable.
	lastNightStart := day.AddDate(0, 0, -1).Add(23 * time.Hour)
	tonightEnd := day.AddDate(0, 0, 1).Add(7 * time.Hour)
	blocks := []types.TimeBlock{
		block(types.BlockTypeSleep, lastNightStart, clock(6, 30)),
		block(types.BlockTypeWork, clock(9, 0), clock(17, 0)),
		block(types.BlockTypeSleep, clock(22, 30), tonightEnd),
	}

	gaps := computeGaps(blocks, day, time.Hour)

	require.Len(t, gaps, 2)
	assert.Equal(t, clock(6, 30), gaps[0].Start)
	assert.Equal(t, clock(9, 0), gaps[0].End)
	assert.Equal(t, 150, gaps[0].Minutes)
	assert.Equal(t, clock(17, 0), gaps[1].Start)
	assert.Equal(t, clock(22, 30), gaps[1].End)
	assert.Equal(t, 330, gaps[1].Minutes)
}

func TestComputeGapsOpenEndedBlockTerminatesWalk(t *testing.T) {
	open := types.TimeBlock{
		Type:   types.BlockTypeSleep,
		Start:  clock(22, 0),
		Source: types.SourceDevice,
	}
	blocks := []types.TimeBlock{
		block(types.BlockTypeWork, clock(9, 0), clock(17, 0)),
		open,
	}

	gaps := computeGaps(blocks, day, time.Hour)

	require.Len(t, gaps, 1, "interval before the open block is still assessed")
	assert.Equal(t, clock(17, 0), gaps[0].Start)
	assert.Equal(t, clock(22, 0), gaps[0].End)
}
