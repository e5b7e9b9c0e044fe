// Package planner selects the sub-clips that make up a reel.
//
// Planning is a pure function of the manifest: the persisted seed, the probed
// sources and the clips already planned. Running it again over its own output
// produces nothing new.
package planner

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"autoedit/models"
)

// ErrPlanningExhausted is returned when no clip at all can be planned.
var ErrPlanningExhausted = errors.New("planning exhausted")

// Result describes one planning pass.
type Result struct {
	// Added holds the new clips in sequence order.
	Added []*models.ClipRecord
	// TotalSeconds is the planned total including pre-existing clips.
	TotalSeconds float64
	// Exhausted is set when the sources ran out before the target was met.
	Exhausted bool
}

// gap is a free stretch of a source, between clips already planned.
type gap struct {
	start, end float64
	used       float64
	slots      []*slot
}

func (g *gap) room() float64 { return g.end - g.start - g.used }

// slot is a new clip whose length and gap are chosen but not yet placed.
type slot struct {
	seq    int
	length float64
}

type source struct {
	rec  *models.SourceRecord
	gaps []*gap
}

// widest returns the gap with the most room left, or nil if none fits min.
func (s *source) widest(minLen float64) *gap {
	var best *gap
	for _, g := range s.gaps {
		if g.room() >= minLen && (best == nil || g.room() > best.room()) {
			best = g
		}
	}
	return best
}

// tolerance is half the millisecond resolution of clip lengths. A total
// within it of the target counts as reaching it.
const tolerance = 0.0005

// Plan computes the clips needed to bring the manifest up to its target.
// The manifest is not modified.
//
// Lengths are chosen round-robin across the sources. Each source's new clips
// are then spread over its free time: a free stretch is split into equal
// parts, one per clip, and every clip starts at a random offset inside its
// part.
func Plan(m *models.Manifest) (Result, error) {
	p := m.Plan
	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid plan parameters: %w", err)
	}

	res := Result{TotalSeconds: m.PlannedSeconds()}
	if res.TotalSeconds >= p.TargetSeconds-tolerance {
		return res, nil
	}

	var sources []*source
	for _, s := range m.SourcesByStatus(models.SourceProbed) {
		if s.DurationSeconds < p.MinClipSeconds {
			continue
		}
		sources = append(sources, &source{rec: s, gaps: freeGaps(s, m.Clips)})
	}

	var slots []*slot
	seq := m.NextSequenceIndex()
	for pass := 0; res.TotalSeconds < p.TargetSeconds-tolerance; pass++ {
		progress := false
		for i, src := range sources {
			g := src.widest(p.MinClipSeconds)
			if g == nil {
				continue
			}

			rng := rand.New(rand.NewPCG(p.Seed, uint64(pass)<<32|uint64(i)))
			length := pickLength(rng, p, g.room(), p.TargetSeconds-res.TotalSeconds)

			sl := &slot{seq: seq, length: length}
			g.slots = append(g.slots, sl)
			g.used += length
			slots = append(slots, sl)
			seq++
			res.TotalSeconds += length
			progress = true

			if res.TotalSeconds >= p.TargetSeconds-tolerance {
				break
			}
		}
		if !progress {
			res.Exhausted = true
			break
		}
	}

	placed := make(map[int]*models.ClipRecord, len(slots))
	for i, src := range sources {
		rng := rand.New(rand.NewPCG(p.Seed, 1<<63|uint64(i)))
		for _, g := range src.gaps {
			for j, start := range spread(rng, g) {
				sl := g.slots[j]
				clip, err := models.NewClipRecord(sl.seq, src.rec.Path, start, sl.length,
					src.rec.BaseEpoch+int64(math.Floor(start)))
				if err != nil {
					return res, err
				}
				placed[sl.seq] = clip
			}
		}
	}
	for _, sl := range slots {
		res.Added = append(res.Added, placed[sl.seq])
	}

	if len(m.Clips) == 0 && len(res.Added) == 0 {
		return res, fmt.Errorf("%w: no probed source is at least %.3fs long", ErrPlanningExhausted, p.MinClipSeconds)
	}
	return res, nil
}

// freeGaps returns the stretches of s not covered by any existing clip, in
// time order.
func freeGaps(s *models.SourceRecord, clips []*models.ClipRecord) []*gap {
	var taken []*models.ClipRecord
	for _, c := range clips {
		if c.SourcePath == s.Path {
			taken = append(taken, c)
		}
	}
	sort.Slice(taken, func(i, j int) bool { return taken[i].StartSeconds < taken[j].StartSeconds })

	var gaps []*gap
	pos := 0.0
	for _, c := range taken {
		if c.StartSeconds > pos {
			gaps = append(gaps, &gap{start: pos, end: c.StartSeconds})
		}
		pos = math.Max(pos, c.EndSeconds())
	}
	if pos < s.DurationSeconds {
		gaps = append(gaps, &gap{start: pos, end: s.DurationSeconds})
	}
	return gaps
}

// spread returns a start for each slot of g, in slot order. The gap is split
// into equal parts and each clip starts at a random offset in its part,
// clamped so clips never overlap and all of them fit before the gap ends.
func spread(rng *rand.Rand, g *gap) []float64 {
	n := len(g.slots)
	if n == 0 {
		return nil
	}
	part := (g.end - g.start) / float64(n)

	after := g.used
	prevEnd := g.start
	starts := make([]float64, n)
	for j, sl := range g.slots {
		start := g.start + float64(j)*part
		if slack := part - sl.length; slack > 0 {
			start += rng.Float64() * slack
		}

		// Room must remain for this clip and every later one.
		latest := g.end - after
		start = math.Min(math.Max(start, prevEnd), latest)
		start = math.Min(math.Ceil(start*1000)/1000, latest)

		starts[j] = start
		prevEnd = start + sl.length
		after -= sl.length
	}
	return starts
}

// pickLength draws a length in [min, min(max, remaining)] and trims it so the
// total lands on the target. A shortfall below min is rounded up to min.
func pickLength(rng *rand.Rand, p models.PlanParams, remaining, need float64) float64 {
	hi := math.Min(p.MaxClipSeconds, remaining)
	length := p.MinClipSeconds + rng.Float64()*(hi-p.MinClipSeconds)

	// Millisecond resolution keeps the manifest readable.
	length = math.Round(length*1000) / 1000
	if length >= need {
		// Round the trimmed length up so the total reaches the target.
		length = math.Max(math.Ceil(need*1000)/1000, p.MinClipSeconds)
	}
	return math.Min(math.Max(length, p.MinClipSeconds), hi)
}
