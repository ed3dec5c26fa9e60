package model

import "sort"

// RoundTree is a fully-materialized round aggregate: the round, its
// pre-allocated ends, and every recorded shot. It is the unit the
// scorekeeper mutates and the flush pipeline persists.
type RoundTree struct {
	Round Round
	Ends  []End
	Shots []Shot
}

// Recompute rederives every total from the shots: EndTotal per end and
// TotalScore/TotalX/Total10/TotalShots on the round. Totals are always
// rebuilt from scratch rather than patched incrementally so they cannot
// drift from the source of truth.
func (t *RoundTree) Recompute() {
	perEnd := make(map[string]int, len(t.Ends))

	totalScore, totalX, total10 := 0, 0, 0
	for i := range t.Shots {
		s := &t.Shots[i]
		perEnd[s.EndID] += s.Value()
		totalScore += s.Value()
		if s.Score.IsX() {
			totalX++
		}
		if s.Score.IsTen() {
			total10++
		}
	}

	for i := range t.Ends {
		t.Ends[i].EndTotal = perEnd[t.Ends[i].ID]
	}

	t.Round.TotalScore = totalScore
	t.Round.TotalX = totalX
	t.Round.Total10 = total10
	t.Round.TotalShots = len(t.Shots)
}

// End returns the end with the given id, or nil.
func (t *RoundTree) End(endID string) *End {
	for i := range t.Ends {
		if t.Ends[i].ID == endID {
			return &t.Ends[i]
		}
	}
	return nil
}

// EndByIndex returns the end at the 1-based index, or nil.
func (t *RoundTree) EndByIndex(index int) *End {
	for i := range t.Ends {
		if t.Ends[i].Index == index {
			return &t.Ends[i]
		}
	}
	return nil
}

// Shot returns the shot with the given id, or nil.
func (t *RoundTree) Shot(shotID string) *Shot {
	for i := range t.Shots {
		if t.Shots[i].ID == shotID {
			return &t.Shots[i]
		}
	}
	return nil
}

// ShotAt returns the shot occupying an arrow slot within an end, or nil.
func (t *RoundTree) ShotAt(endID string, arrowIndex int) *Shot {
	for i := range t.Shots {
		if t.Shots[i].EndID == endID && t.Shots[i].ArrowIndex == arrowIndex {
			return &t.Shots[i]
		}
	}
	return nil
}

// ShotsForEnd returns the shots of one end ordered by arrow index.
func (t *RoundTree) ShotsForEnd(endID string) []Shot {
	var out []Shot
	for i := range t.Shots {
		if t.Shots[i].EndID == endID {
			out = append(out, t.Shots[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrowIndex < out[j].ArrowIndex })
	return out
}

// LastFilledShot returns the most recently filled arrow slot: the shot
// in the highest-indexed end, highest arrow index within it. Nil when
// the round has no shots. This is the basis for undo.
func (t *RoundTree) LastFilledShot() *Shot {
	indexByEnd := make(map[string]int, len(t.Ends))
	for i := range t.Ends {
		indexByEnd[t.Ends[i].ID] = t.Ends[i].Index
	}

	var best *Shot
	for i := range t.Shots {
		s := &t.Shots[i]
		if best == nil {
			best = s
			continue
		}
		ei, bi := indexByEnd[s.EndID], indexByEnd[best.EndID]
		if ei > bi || (ei == bi && s.ArrowIndex > best.ArrowIndex) {
			best = s
		}
	}
	return best
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (t *RoundTree) Clone() RoundTree {
	out := RoundTree{Round: t.Round}
	if t.Round.Competition != nil {
		info := *t.Round.Competition
		out.Round.Competition = &info
	}
	out.Ends = make([]End, len(t.Ends))
	copy(out.Ends, t.Ends)
	out.Shots = make([]Shot, len(t.Shots))
	for i := range t.Shots {
		out.Shots[i] = t.Shots[i]
		if t.Shots[i].Position != nil {
			pos := *t.Shots[i].Position
			out.Shots[i].Position = &pos
		}
	}
	return out
}
