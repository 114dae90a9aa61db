package ft2engine

import (
	"math"

	clone "github.com/huandu/go-clone/generic"
)

// ticksPerPPQ is the fixed tick-to-PPQ ratio spec.md §4.5 derives from
// "1 tick = 2.5/bpm sec" and "1 beat = 60/bpm sec": bpm cancels, so
// every tick is worth exactly 1/24 PPQ regardless of tempo. This is
// what makes the time map usable across an Fxx BPM change without
// rebuilding it.
const ticksPerPPQ = 1.0 / 24.0

// TimeMapEntry is one indexed tick in a song's time map, per spec.md
// §4.5: enough to seek a DAW transport position to the matching
// (order, row) without replaying from the start, and to recover
// whatever E6x pattern-loop state was in effect when that row began.
type TimeMapEntry struct {
	Tick         int     // absolute tick index from song start
	PPQPosition  float64 // BPM-invariant beat-relative position
	Order        int
	Row          int
	LoopCounter  int // E6x iterations remaining, 0 = no loop in progress/exhausted
	LoopStartRow int // row an E6x loop-back would return to
	SamplePos    int64 // cumulative output samples from song start, at the bpm in effect when built
	HasLooped    bool
}

// TimeMap is a dense, monotonic PPQ<->tick index built by dry-running
// the replayer once (spec.md §4.5 "build_time_map"). It never mixes
// audio; it only advances tick-sequencing state, which is why it needs
// its own Replayer clone rather than sharing the live playback one.
type TimeMap struct {
	entries []TimeMapEntry
	bpmAt   []int // bpm in effect at each entry, for tick<->PPQ conversion

	// TotalPPQ is the PPQ position one tick past the last entry - the
	// modulus a looping song's queries wrap against (spec.md §4.5
	// "lookup").
	TotalPPQ float64
}

// BuildTimeMap dry-runs song from the start until the order list loops
// back on itself (or a cap is hit, guarding against a song with an
// unreachable restart point), recording one entry per tick.
//
// The replayer used here is a throwaway one of its own, built with
// NewReplayer, matching spec.md §4.5's requirement that building the
// map must not disturb any channel/voice state a real playback might be
// using concurrently: it shares no channel or voice state with any
// other Replayer.
func BuildTimeMap(song *Song, outputFreq int) *TimeMap {
	const maxTicks = 1 << 22 // generous ceiling against pathological loops

	dry := NewReplayer(song, outputFreq)
	dry.Play()

	tm := &TimeMap{}
	visited := make(map[[2]int]bool)

	var samplePos int64
	for tick := 0; tick < maxTicks; tick++ {
		order, row := dry.order, dry.row
		key := [2]int{order, row}
		// An E6x loop-back revisits loopStartRow on purpose, bounded by
		// loopCounter counting down to 0 - that is not the song looping,
		// so it must not trip the visited check (an in-progress loop has
		// loopCounter != 0 at row entry). Only a row reached with no
		// active loop is eligible to prove the song itself has repeated.
		if dry.tick == 0 && dry.loopCounter == 0 {
			if visited[key] {
				break
			}
			visited[key] = true
		}

		// loopCounter/loopStartRow are read here, before this tick's
		// Tick() call runs beginRow for a tick==0 row, so they reflect
		// the E6x state a seek landing on this row would resume with -
		// spec.md §4.5's "records ... the E6x state at the entry of
		// every row".
		tm.entries = append(tm.entries, TimeMapEntry{
			Tick:         tick,
			PPQPosition:  float64(tick) * ticksPerPPQ,
			Order:        order,
			Row:          row,
			LoopCounter:  dry.loopCounter,
			LoopStartRow: dry.loopStartRow,
			SamplePos:    samplePos,
			HasLooped:    anyChannelLooped(dry),
		})
		tm.bpmAt = append(tm.bpmAt, dry.bpm)

		samplePos += int64(dry.Tick())
		if !dry.playing {
			break
		}
	}

	tm.TotalPPQ = float64(len(tm.entries)) * ticksPerPPQ
	return tm
}

func anyChannelLooped(r *Replayer) bool {
	for i := range r.voices {
		if r.voices[i].hasLooped {
			return true
		}
	}
	return false
}

// cloneReplayerForProbe deep-clones a live Replayer for a one-off,
// throwaway dry run (e.g. "what order/row will tick N land on if I seek
// there"), without touching the caller's actual playback state. Kept
// separate from BuildTimeMap's fresh-from-Play construction because a
// host may want to probe from the *current* position rather than from
// song start.
func cloneReplayerForProbe(r *Replayer) *Replayer {
	return clone.Clone(r)
}

// LookupPPQ returns the latest entry whose PPQPosition does not exceed
// ppq, per spec.md §4.5 "lookup": ppq is first reduced modulo TotalPPQ
// so an out-of-range (e.g. negative, or past one loop) query wraps onto
// the map instead of failing. The caller restores (Order, Row,
// LoopCounter, LoopStartRow) on the replayer and forces it to re-enter
// that row on the next tick.
func (tm *TimeMap) LookupPPQ(ppq float64) (TimeMapEntry, bool) {
	if len(tm.entries) == 0 || tm.TotalPPQ <= 0 {
		return TimeMapEntry{}, false
	}
	ppq = math.Mod(ppq, tm.TotalPPQ)
	if ppq < 0 {
		ppq += tm.TotalPPQ
	}

	lo, hi := 0, len(tm.entries)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if tm.entries[mid].PPQPosition <= ppq {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return tm.entries[lo], true
}

// TickAtSamplePos returns the time map entry active at or just before
// the given cumulative sample position, for "where is playback right
// now" queries against the bpm the map was built with (spec.md §4.5
// "samples -> (order,row)"). LookupPPQ is the BPM-invariant form hosts
// doing DAW sync should prefer.
func (tm *TimeMap) TickAtSamplePos(pos int64) (TimeMapEntry, bool) {
	if len(tm.entries) == 0 {
		return TimeMapEntry{}, false
	}
	lo, hi := 0, len(tm.entries)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if tm.entries[mid].SamplePos <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return tm.entries[lo], true
}

// SamplePosAtOrderRow is the inverse lookup, "when (in samples) does
// (order,row) first play" (spec.md §4.5 "(order,row) -> samples"),
// used by a host seeking to a pattern-editor position.
func (tm *TimeMap) SamplePosAtOrderRow(order, row int) (int64, bool) {
	for _, e := range tm.entries {
		if e.Order == order && e.Row == row {
			return e.SamplePos, true
		}
	}
	return 0, false
}

// PPQAtOrderRow is LookupPPQ's inverse: the PPQ position of the first
// entry at (order, row), for a host that wants to tell its DAW "loop
// back to here" in beat-relative terms.
func (tm *TimeMap) PPQAtOrderRow(order, row int) (float64, bool) {
	for _, e := range tm.entries {
		if e.Order == order && e.Row == row {
			return e.PPQPosition, true
		}
	}
	return 0, false
}

// Len reports how many ticks the map covers (one full loop of the
// song), for hosts that want to preallocate a PPQ grid.
func (tm *TimeMap) Len() int { return len(tm.entries) }
