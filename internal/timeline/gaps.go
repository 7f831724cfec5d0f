package timeline

import (
	"time"

	"github.com/daybook-ai/daybook/pkg/types"
)

// computeGaps walks the sorted block list and reports every unaccounted
// interval longer than the threshold. Gaps are derived on every build and
// never persisted.
//
// The walk tracks the latest end time seen so far rather than comparing
// strictly adjacent pairs, so a short block nested inside a longer one does
// not fabricate a gap the longer block already covers. For non-overlapping
// blocks this is identical to the adjacent-pair rule.
//
// Day boundaries are checked against sleep-derived anchors: the interval
// from the inferred wake time to the first block, and from the last block
// to the inferred bedtime. Without sleep data the day edges are not
// reported — with no evidence of when the day started or ended, a
// "gap" from midnight would be noise, not signal.
//
// An open-ended block (no end time) terminates the walk: nothing after an
// interval of unknown length can be called unaccounted. With no blocks at
// all there are no anchors to walk and no gaps are computed.
func computeGaps(blocks []types.TimeBlock, day time.Time, threshold time.Duration) []types.TimeGap {
	if len(blocks) == 0 {
		return nil
	}

	wake, bed := sleepAnchors(blocks, day)

	// covered marks the instant up to which the day is accounted for.
	covered := types.DayStart(day)
	if wake != nil {
		covered = *wake
	}
	boundedStart := wake != nil

	var gaps []types.TimeGap
	emit := func(from, to time.Time) {
		if to.Sub(from) > threshold {
			gaps = append(gaps, types.TimeGap{
				Start:   from,
				End:     to,
				Minutes: int(to.Sub(from) / time.Minute),
			})
		}
	}

	for i := range blocks {
		b := &blocks[i]
		if b.Start.After(covered) {
			// Leading edge only counts when anchored by a wake time.
			if i > 0 || boundedStart {
				emit(covered, b.Start)
			}
			covered = b.Start
		}
		if b.End == nil {
			// Unknown extent; nothing beyond this point can be assessed.
			return gaps
		}
		if b.End.After(covered) {
			covered = *b.End
		}
	}

	if bed != nil && bed.After(covered) {
		emit(covered, *bed)
	}
	return gaps
}

// sleepAnchors derives the day's wake and bedtime anchors from sleep
// blocks. The wake anchor is the end of a sleep block that ends on the
// target day (last night's sleep); the bed anchor is the start of a sleep
// block that starts on the target day (tonight's sleep). Either may be
// absent.
func sleepAnchors(blocks []types.TimeBlock, day time.Time) (wake, bed *time.Time) {
	dayStart := types.DayStart(day)
	dayEnd := types.DayEnd(day)

	for i := range blocks {
		b := &blocks[i]
		if b.Type != types.BlockTypeSleep {
			continue
		}
		if b.End != nil && !b.End.Before(dayStart) && b.End.Before(dayEnd) && b.Start.Before(*b.End) {
			if wake == nil || b.End.After(*wake) {
				wake = b.End
			}
		}
		if !b.Start.Before(dayStart) && b.Start.Before(dayEnd) {
			// Evening sleep: anything starting past noon counts as the
			// day's bedtime; an early-morning start is last night's sleep
			// bucketed onto this date.
			if b.Start.Sub(dayStart) >= 12*time.Hour {
				if bed == nil || b.Start.Before(*bed) {
					start := b.Start
					bed = &start
				}
			}
		}
	}
	return wake, bed
}
