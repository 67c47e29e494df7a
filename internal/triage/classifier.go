// Package triage classifies inbound support messages. The classifier is a
// fixed-priority rule chain over configurable word lists; the first matching
// rule wins. It does no I/O and its behavior is tuned entirely through Lists.
package triage

import (
	"regexp"
	"strings"
)

type Decision string

const (
	DecisionGreeting  Decision = "GREETING"
	DecisionClarify   Decision = "CLARIFY"
	DecisionEscalate  Decision = "ESCALATE"
	DecisionAutoReply Decision = "AUTO_REPLY"
)

// message carries the normalized views a rule predicate can look at.
type message struct {
	text     string // trimmed, lower-cased
	noCommas string // text with thousands separators stripped, for amount shapes
	tokens   []string
}

type rule struct {
	name     string
	decision Decision
	match    func(m message) bool
}

type Classifier struct {
	rules      []rule
	greetingRe []*regexp.Regexp
	maxGreet   int
}

// termRe compiles a word-boundary pattern for a single term or phrase.
// Plain Contains would match "again" inside "against".
func termRe(term string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(term)) + `\b`)
}

func compileTerms(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(terms))
	for _, t := range terms {
		out = append(out, termRe(t))
	}
	return out
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Currency-amount shapes: a three-or-more digit dollar figure, a five-or-more
// digit local-currency figure, "<n> thousand", or "<n> items".
var (
	dollarAmountRe   = regexp.MustCompile(`\$\s?\d{3,}`)
	localAmountRe    = regexp.MustCompile(`₦\s?\d{5,}|\b\d{5,}\b`)
	thousandAmountRe = regexp.MustCompile(`\b\d+\s*(thousand|k)\b`)
	itemCountRe      = regexp.MustCompile(`\b\d+\s*items?\b`)
)

func NewClassifier(lists Lists) *Classifier {
	c := &Classifier{
		greetingRe: compileTerms(lists.Greetings),
		maxGreet:   lists.GreetingMaxLen,
	}
	if c.maxGreet <= 0 {
		c.maxGreet = 15
	}

	vague := compileTerms(lists.VaguePhrases)
	vagueMax := lists.VagueMaxTokens
	if vagueMax <= 0 {
		vagueMax = 10
	}
	shortMin := lists.ShortMinTokens
	if shortMin <= 0 {
		shortMin = 3
	}

	var category []*regexp.Regexp
	for _, terms := range [][]string{
		lists.LegalTerms,
		lists.SecurityTerms,
		lists.BulkOrderTerms,
		lists.TechnicalTerms,
		lists.WorkplaceTerms,
	} {
		category = append(category, compileTerms(terms)...)
	}

	refund := compileTerms(lists.RefundTerms)
	humanEsc := compileTerms(lists.EscalationPhrases)
	repeated := compileTerms(lists.RepeatedContactPhrases)

	c.rules = []rule{
		{
			name:     "greeting",
			decision: DecisionGreeting,
			match: func(m message) bool {
				return len(m.text) <= c.maxGreet && anyMatch(c.greetingRe, m.text)
			},
		},
		{
			name:     "clarify_vague",
			decision: DecisionClarify,
			match: func(m message) bool {
				return anyMatch(vague, m.text) && len(m.tokens) < vagueMax
			},
		},
		{
			name:     "escalate_category",
			decision: DecisionEscalate,
			match: func(m message) bool {
				return anyMatch(category, m.text)
			},
		},
		{
			name:     "escalate_monetary",
			decision: DecisionEscalate,
			match: func(m message) bool {
				hasAmount := dollarAmountRe.MatchString(m.noCommas) ||
					localAmountRe.MatchString(m.noCommas) ||
					thousandAmountRe.MatchString(m.text) ||
					itemCountRe.MatchString(m.text)
				return hasAmount && anyMatch(refund, m.text)
			},
		},
		{
			name:     "escalate_dissatisfaction",
			decision: DecisionEscalate,
			match: func(m message) bool {
				return anyMatch(humanEsc, m.text) || anyMatch(repeated, m.text)
			},
		},
		{
			name:     "clarify_short",
			decision: DecisionClarify,
			match: func(m message) bool {
				return len(m.tokens) < shortMin
			},
		},
	}
	return c
}

// Classify runs the rule chain in priority order. Matching is case-insensitive
// and whitespace-trimmed; unmatched messages fall through to AUTO_REPLY.
func (c *Classifier) Classify(raw string) Decision {
	text := strings.ToLower(strings.TrimSpace(raw))
	m := message{
		text:     text,
		noCommas: strings.ReplaceAll(text, ",", ""),
		tokens:   strings.Fields(text),
	}
	for _, r := range c.rules {
		if r.match(m) {
			return r.decision
		}
	}
	return DecisionAutoReply
}

// IsGreeting applies only the greeting rule; the orchestrator uses it to pick
// the canned greeting reply.
func (c *Classifier) IsGreeting(raw string) bool {
	text := strings.ToLower(strings.TrimSpace(raw))
	return len(text) <= c.maxGreet && anyMatch(c.greetingRe, text)
}
