package rules

import "github.com/curatarr/curatarr/internal/plex"

// statsRecorder collects per-item diagnostics. A nil recorder records
// nothing, so evaluation code can call it unconditionally.
type statsRecorder struct {
	order []string
	items map[string]*ItemStats
}

func newStatsRecorder(items []plex.Metadata) *statsRecorder {
	r := &statsRecorder{items: make(map[string]*ItemStats, len(items))}
	for _, it := range items {
		if _, dup := r.items[it.RatingKey]; dup {
			continue
		}
		r.order = append(r.order, it.RatingKey)
		r.items[it.RatingKey] = &ItemStats{PlexID: it.RatingKey, Title: it.Title}
	}
	return r
}

func (r *statsRecorder) startSection(section int, operator string) {
	if r == nil {
		return
	}
	for _, s := range r.items {
		s.Sections = append(s.Sections, SectionStats{Section: section, Operator: operator})
	}
}

func (r *statsRecorder) recordRule(key string, rule Rule, first, second Value, result *bool) {
	if r == nil {
		return
	}
	s, ok := r.items[key]
	if !ok || len(s.Sections) == 0 {
		return
	}

	rs := RuleStats{
		Action:         rule.Action.String(),
		FirstValueName: operandName(rule.FirstVal),
		FirstValue:     first.Any(),
		SecondValue:    second.Any(),
		Result:         result,
	}
	if rule.Operator != nil {
		rs.Operator = rule.Operator.String()
	}
	switch {
	case rule.Action.Unary():
	case rule.LastVal != nil:
		rs.SecondValueName = operandName(*rule.LastVal)
	case rule.CustomVal != nil:
		rs.SecondValueName = "custom_" + rule.CustomVal.Type.String()
	}

	cur := &s.Sections[len(s.Sections)-1]
	cur.Rules = append(cur.Rules, rs)
}

func (r *statsRecorder) endSection(working keySet) {
	if r == nil {
		return
	}
	for key, s := range r.items {
		if len(s.Sections) > 0 {
			s.Sections[len(s.Sections)-1].Result = working.has[key]
		}
	}
}

func (r *statsRecorder) list(result keySet) []ItemStats {
	if r == nil {
		return nil
	}
	out := make([]ItemStats, 0, len(r.order))
	for _, key := range r.order {
		s := r.items[key]
		s.Result = result.has[key]
		out = append(out, *s)
	}
	return out
}

func operandName(loc Location) string {
	if p, ok := LookupProperty(loc); ok {
		return p.Key()
	}
	return loc.App.String() + ".unknown"
}
