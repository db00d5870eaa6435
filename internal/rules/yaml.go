package rules

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/curatarr/curatarr/internal/plex"
)

// yamlDocument is the portable rule format. Sections are keyed by number
// and rules refer to properties by "App.name".
type yamlDocument struct {
	MediaType string               `yaml:"mediaType"`
	Rules     []map[int][]yamlRule `yaml:"rules"`
}

type yamlRule struct {
	Operator    string           `yaml:"operator,omitempty"`
	FirstValue  string           `yaml:"firstValue"`
	Action      string           `yaml:"action"`
	LastValue   string           `yaml:"lastValue,omitempty"`
	CustomValue *yamlCustomValue `yaml:"customValue,omitempty"`
}

type yamlCustomValue struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// EncodeYAML renders rules in the portable YAML format.
func EncodeYAML(dataType plex.MediaType, rules []Rule) ([]byte, error) {
	doc := yamlDocument{MediaType: string(dataType)}
	bySection := map[int][]yamlRule{}
	var sections []int

	for i, r := range rules {
		first, ok := LookupProperty(r.FirstVal)
		if !ok {
			return nil, fmt.Errorf("rule %d: unknown property %v", i+1, r.FirstVal)
		}
		yr := yamlRule{FirstValue: first.Key(), Action: r.Action.String()}
		if r.Operator != nil {
			yr.Operator = r.Operator.String()
		}
		if r.LastVal != nil {
			last, ok := LookupProperty(*r.LastVal)
			if !ok {
				return nil, fmt.Errorf("rule %d: unknown property %v", i+1, *r.LastVal)
			}
			yr.LastValue = last.Key()
		}
		if r.CustomVal != nil {
			yr.CustomValue = &yamlCustomValue{Type: r.CustomVal.Type.String(), Value: r.CustomVal.Value}
		}
		if _, seen := bySection[r.Section]; !seen {
			sections = append(sections, r.Section)
		}
		bySection[r.Section] = append(bySection[r.Section], yr)
	}

	sort.Ints(sections)
	for _, s := range sections {
		doc.Rules = append(doc.Rules, map[int][]yamlRule{s: bySection[s]})
	}
	return yaml.Marshal(doc)
}

// DecodeYAML parses the portable YAML format. The result is not validated.
func DecodeYAML(data []byte) (plex.MediaType, []Rule, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var rules []Rule
	for _, entry := range doc.Rules {
		sections := make([]int, 0, len(entry))
		for s := range entry {
			sections = append(sections, s)
		}
		sort.Ints(sections)

		for _, s := range sections {
			for _, yr := range entry[s] {
				r, err := yr.toRule(s)
				if err != nil {
					return "", nil, invalid(len(rules), "%v", err)
				}
				rules = append(rules, r)
			}
		}
	}
	return plex.MediaType(strings.ToLower(doc.MediaType)), rules, nil
}

func (yr yamlRule) toRule(section int) (Rule, error) {
	r := Rule{Section: section}

	if yr.Operator != "" {
		switch strings.ToUpper(yr.Operator) {
		case "AND":
			r.Operator = Ptr(And)
		case "OR":
			r.Operator = Ptr(Or)
		default:
			return r, fmt.Errorf("unknown operator %q", yr.Operator)
		}
	}

	first, ok := PropertyByKey(yr.FirstValue)
	if !ok {
		return r, fmt.Errorf("unknown property %q", yr.FirstValue)
	}
	r.FirstVal = first.Location()

	action, err := ParseOperator(yr.Action)
	if err != nil {
		return r, err
	}
	r.Action = action

	if yr.LastValue != "" {
		last, ok := PropertyByKey(yr.LastValue)
		if !ok {
			return r, fmt.Errorf("unknown property %q", yr.LastValue)
		}
		loc := last.Location()
		r.LastVal = &loc
	}
	if yr.CustomValue != nil {
		t, err := ParseValueType(yr.CustomValue.Type)
		if err != nil {
			return r, err
		}
		r.CustomVal = &CustomValue{Type: t, Value: yr.CustomValue.Value}
	}
	return r, nil
}
