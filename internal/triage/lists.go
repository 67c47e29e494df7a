package triage

import (
	"encoding/json"
	"fmt"
	"os"
)

// Lists holds the word lists and thresholds the rule chain is built from.
// They ship as JSON so support can tune phrasing without a code change.
type Lists struct {
	GreetingMaxLen int      `json:"greeting_max_len"`
	Greetings      []string `json:"greetings"`

	VagueMaxTokens int      `json:"vague_max_tokens"`
	VaguePhrases   []string `json:"vague_phrases"`

	LegalTerms     []string `json:"legal_terms"`
	SecurityTerms  []string `json:"security_terms"`
	BulkOrderTerms []string `json:"bulk_order_terms"`
	TechnicalTerms []string `json:"technical_terms"`
	WorkplaceTerms []string `json:"workplace_terms"`

	RefundTerms []string `json:"refund_terms"`

	EscalationPhrases      []string `json:"escalation_phrases"`
	RepeatedContactPhrases []string `json:"repeated_contact_phrases"`

	ShortMinTokens int `json:"short_min_tokens"`
}

func DefaultLists() Lists {
	return Lists{
		GreetingMaxLen: 15,
		Greetings: []string{
			"hello", "hi", "hey",
			"good morning", "good afternoon", "good evening",
			"hiya", "greetings",
		},

		VagueMaxTokens: 10,
		VaguePhrases: []string{
			"help", "issue", "problem", "something wrong", "not working",
		},

		LegalTerms: []string{
			"legal", "lawsuit", "lawyer", "attorney", "court", "sue",
		},
		SecurityTerms: []string{
			"fraud", "scam", "hacked", "account hacked", "unauthorized",
			"stolen", "identity theft", "phishing",
		},
		BulkOrderTerms: []string{
			"bulk order", "wholesale", "custom order", "corporate order",
		},
		TechnicalTerms: []string{
			"keeps failing", "tried everything", "multiple times",
			"still broken", "every time i try",
		},
		WorkplaceTerms: []string{
			"harassment", "discrimination", "privacy", "data breach",
			"delete my data",
		},

		RefundTerms: []string{
			"refund", "return", "cancel", "dispute", "chargeback",
			"not received", "never arrived", "money back",
		},

		EscalationPhrases: []string{
			"speak to a manager", "speak to a human", "manager", "supervisor",
			"escalate", "complaint", "dissatisfied", "unacceptable",
			"real person",
		},
		RepeatedContactPhrases: []string{
			"again", "still not resolved", "second time", "third time",
			"already contacted", "still waiting", "no response",
		},

		ShortMinTokens: 3,
	}
}

// LoadLists reads Lists from a JSON file. Missing fields fall back to the
// shipped defaults so a partial override file stays valid.
func LoadLists(path string) (Lists, error) {
	lists := DefaultLists()
	b, err := os.ReadFile(path)
	if err != nil {
		return lists, fmt.Errorf("triage: read rules: %w", err)
	}
	if err := json.Unmarshal(b, &lists); err != nil {
		return lists, fmt.Errorf("triage: parse rules: %w", err)
	}
	return lists, nil
}
