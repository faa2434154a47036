package caproto

import (
	"fmt"
	"regexp"
)

// Filter decides whether a PV name found in a SEARCH message should be
// relayed. Rules are evaluated in order; Sense inverts each rule's
// individual match verdict, and Logic chooses how the (possibly
// inverted) per-rule verdicts combine. An empty rule list accepts
// everything.
type Filter struct {
	Sense bool
	Logic bool // false = OR, true = AND
	rules []*regexp.Regexp
}

// NewFilter compiles pattern into a Filter. Compile errors are fatal at
// startup per spec.md §4.2.1 ("regex compile errors at startup are
// fatal"); the caller is expected to treat a non-nil error that way.
//
// Rules run on RE2 (no backreferences or lookaround); a rule set
// written against a backreference/lookaround-dependent pattern will
// either fail to compile here or match differently than it did under
// a backtracking engine.
func NewFilter(sense, logic bool, patterns []string) (*Filter, error) {
	rules := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile filter rule %d (%q): %w", i, p, err)
		}
		rules = append(rules, re)
	}
	return &Filter{Sense: sense, Logic: logic, rules: rules}, nil
}

// Accept reports whether pv passes the filter. See spec.md §4.2.1.
func (f *Filter) Accept(pv string) bool {
	if len(f.rules) == 0 {
		return true
	}

	if f.Logic {
		// AND: every rule's verdict must agree (accept-biased), reject
		// on the first disagreement.
		for _, re := range f.rules {
			if !f.ruleHit(re, pv) {
				return false
			}
		}
		return true
	}

	// OR: accept on the first agreeing rule, otherwise reject.
	for _, re := range f.rules {
		if f.ruleHit(re, pv) {
			return true
		}
	}
	return false
}

// ruleHit evaluates a single rule against pv, applying Sense. A runtime
// panic from the regexp engine (not expected with Go's RE2 engine, but
// guarded for parity with the "DFA stack overflow" failure mode
// described in spec.md §4.2.1) is treated as no match.
func (f *Filter) ruleHit(re *regexp.Regexp, pv string) (hit bool) {
	defer func() {
		if recover() != nil {
			hit = f.Sense
		}
	}()
	return re.MatchString(pv) != f.Sense
}

// RuleCount returns the number of compiled rules, for diagnostics.
func (f *Filter) RuleCount() int { return len(f.rules) }
