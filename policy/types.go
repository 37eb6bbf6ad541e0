package policy

// Logic is the combinator of a signatory policy clause.
type Logic string

const (
	AND Logic = "AND"
	OR  Logic = "OR"
	NOT Logic = "NOT"
)

func ParseLogic(s string) (Logic, bool) {
	switch Logic(s) {
	case AND, OR, NOT:
		return Logic(s), true
	default:
		return "", false
	}
}

// Clause requires the candidate to hold attestations under SchemaIDs,
// combined according to Logic.
type Clause struct {
	Logic       Logic    `json:"logic"`
	Description string   `json:"description"`
	SchemaIDs   []uint64 `json:"schemaIds"`
}

// RequestContext is the evaluation input. Held lists, per schema id, whether
// the candidate holds at least one non-revoked attestation under it.
type RequestContext struct {
	Candidate string          `json:"candidate"`
	Held      map[uint64]bool `json:"held"`
}

type Expr struct {
	Operator string `json:"op"`
	Args     []Expr `json:"args"`
	Const    any    `json:"const,omitempty"`
}

type EvalResult struct {
	Operator string       `json:"op"`
	Args     []EvalResult `json:"args"`
	Result   any          `json:"result"`
	Error    string       `json:"error"`
}

// ClauseResult is the outcome of one clause.
type ClauseResult struct {
	Clause Clause     `json:"clause"`
	Passed bool       `json:"passed"`
	Trace  EvalResult `json:"trace"`
}
