package rules

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/plex"
)

// ValueGetter resolves a property for one item. It returns an Unknown
// value when the lookup fails and Null when the source has no value.
type ValueGetter interface {
	Get(ctx context.Context, loc Location, item *plex.Metadata, group *RuleGroup) Value
}

// RuleStats describes one rule evaluated for one item. Result is nil when
// an operand was unknown and the rule was skipped.
type RuleStats struct {
	Operator        string `json:"operator,omitempty"`
	Action          string `json:"action"`
	FirstValueName  string `json:"firstValueName"`
	FirstValue      any    `json:"firstValue"`
	SecondValueName string `json:"secondValueName"`
	SecondValue     any    `json:"secondValue"`
	Result          *bool  `json:"result"`
}

// SectionStats groups the rule stats of one section.
type SectionStats struct {
	Section  int         `json:"id"`
	Operator string      `json:"operator,omitempty"`
	Result   bool        `json:"result"`
	Rules    []RuleStats `json:"ruleResults"`
}

// ItemStats is the diagnostic trace for one item.
type ItemStats struct {
	PlexID   string         `json:"plexId"`
	Title    string         `json:"title"`
	Result   bool           `json:"result"`
	Sections []SectionStats `json:"sectionResults"`
}

// Result is the outcome of evaluating a rule group against a batch.
type Result struct {
	Matched []plex.Metadata
	Stats   []ItemStats
}

// Comparator evaluates rule groups. It holds no per-evaluation state, so
// one Comparator can evaluate several groups concurrently.
type Comparator struct {
	getter ValueGetter
	now    func() time.Time
	logger zerolog.Logger
}

// NewComparator creates a comparator reading operands through getter.
func NewComparator(getter ValueGetter, logger zerolog.Logger) *Comparator {
	return &Comparator{
		getter: getter,
		now:    time.Now,
		logger: logger.With().Str("component", "comparator").Logger(),
	}
}

// keySet is an insertion-ordered set of rating keys.
type keySet struct {
	order []string
	has   map[string]bool
}

func newKeySet() keySet {
	return keySet{has: make(map[string]bool)}
}

func (s keySet) clone() keySet {
	c := keySet{order: make([]string, len(s.order)), has: make(map[string]bool, len(s.has))}
	copy(c.order, s.order)
	for k := range s.has {
		c.has[k] = true
	}
	return c
}

func (s *keySet) add(k string) {
	if !s.has[k] {
		s.has[k] = true
		s.order = append(s.order, k)
	}
}

func (s keySet) without(k string) keySet {
	if !s.has[k] {
		return s
	}
	out := newKeySet()
	for _, x := range s.order {
		if x != k {
			out.add(x)
		}
	}
	return out
}

// foldState is threaded through the fold over rules.
type foldState struct {
	working keySet
	result  keySet
}

// evaluation carries the read-only inputs of one Evaluate call.
type evaluation struct {
	ctx   context.Context
	group *RuleGroup
	items []plex.Metadata
	batch map[string]bool
	now   time.Time
	stats *statsRecorder
}

// Evaluate returns the items of the batch that satisfy the group.
func (c *Comparator) Evaluate(ctx context.Context, group *RuleGroup, items []plex.Metadata, withStats bool) Result {
	ev := evaluation{
		ctx:   ctx,
		group: group,
		items: items,
		batch: make(map[string]bool, len(items)),
		now:   c.now(),
	}
	for _, it := range items {
		ev.batch[it.RatingKey] = true
	}
	if withStats {
		ev.stats = newStatsRecorder(items)
	}

	st := foldState{working: newKeySet(), result: newKeySet()}
	if len(group.Rules) == 0 {
		return Result{Matched: []plex.Metadata{}, Stats: ev.stats.list(st.result)}
	}

	section := group.Rules[0].Section
	sectionAnd := false
	ev.stats.startSection(section, "")
	for i, rule := range group.Rules {
		if i > 0 && rule.Section != section {
			st = ev.finishSection(st, sectionAnd)
			sectionAnd = rule.combinator() == And
			section = rule.Section
			ev.stats.startSection(section, rule.combinator().String())
			// The first rule of a section always starts from the full batch.
			rule.Operator = nil
		}
		st = c.applyRule(ev, st, rule)
	}
	st = ev.finishSection(st, sectionAnd)

	matched := make([]plex.Metadata, 0, len(st.result.order))
	for _, it := range items {
		if st.result.has[it.RatingKey] {
			matched = append(matched, it)
		}
	}
	return Result{Matched: matched, Stats: ev.stats.list(st.result)}
}

// finishSection merges the section's working set into the result: OR
// sections union, AND sections intersect for items of this batch only.
func (ev evaluation) finishSection(st foldState, and bool) foldState {
	ev.stats.endSection(st.working)

	result := newKeySet()
	if and {
		for _, k := range st.result.order {
			if st.working.has[k] || !ev.batch[k] {
				result.add(k)
			}
		}
	} else {
		result = st.result.clone()
		for _, k := range st.working.order {
			result.add(k)
		}
	}
	return foldState{working: newKeySet(), result: result}
}

// applyRule folds one rule into the state. OR rules (and the first rule of
// a section) add matching batch items to working; AND rules evict
// non-matching ones. Items with an unknown operand are left where they are.
func (c *Comparator) applyRule(ev evaluation, st foldState, rule Rule) foldState {
	seed := rule.combinator() == Or

	var candidates []*plex.Metadata
	for i := range ev.items {
		if seed || st.working.has[ev.items[i].RatingKey] {
			candidates = append(candidates, &ev.items[i])
		}
	}

	working := st.working.clone()
	for _, item := range candidates {
		first := c.getter.Get(ev.ctx, rule.FirstVal, item, ev.group)
		second := c.secondOperand(ev, rule, item, first)

		if first.IsUnknown() || (second.IsUnknown() && !rule.Action.Unary()) {
			ev.stats.recordRule(item.RatingKey, rule, first, second, nil)
			continue
		}

		ok := Compare(first, second, rule.Action, ev.now)
		ev.stats.recordRule(item.RatingKey, rule, first, second, &ok)

		switch {
		case seed && ok:
			working.add(item.RatingKey)
		case !seed && !ok:
			working = working.without(item.RatingKey)
		}
	}
	return foldState{working: working, result: st.result}
}

func (c *Comparator) secondOperand(ev evaluation, rule Rule, item *plex.Metadata, first Value) Value {
	switch {
	case rule.Action.Unary():
		return Null()
	case rule.LastVal != nil:
		return c.getter.Get(ev.ctx, *rule.LastVal, item, ev.group)
	case rule.CustomVal != nil:
		return Coerce(*rule.CustomVal, first, rule.Action, ev.now)
	default:
		c.logger.Warn().Int64("ruleGroupId", ev.group.ID).Msg("Rule has no second operand")
		return Unknown()
	}
}
