package domain

// GrammarRule identifies the rule behind a grammar match.
type GrammarRule struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	IssueType   string `json:"issueType,omitempty"`
}

// GrammarMatch is one issue reported by the grammar checker.
type GrammarMatch struct {
	Message      string       `json:"message"`
	ShortMessage string       `json:"shortMessage,omitempty"`
	Offset       int          `json:"offset"`
	Length       int          `json:"length"`
	Rule         *GrammarRule `json:"rule,omitempty"`
}
