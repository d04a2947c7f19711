package agent

import (
	"log"

	"github.com/po4yka/bite-size-reader-sub001/internal/contract"
)

// ValidationOutcome reports whether a candidate satisfies the summary
// contract. An invalid candidate is a successful validation run; the
// violation list is ordered by the contract's check order and stable across
// repeated runs on the same input.
type ValidationOutcome struct {
	Valid      bool                 `json:"valid"`
	Violations []contract.Violation `json:"violations,omitempty"`
	Summary    contract.Summary     `json:"summary"`
}

// ValidationAgent checks candidate summaries against the contract. It is
// synchronous and CPU-only; the only failure mode is a candidate that cannot
// be parsed at all.
type ValidationAgent struct {
	logger *log.Logger
}

func NewValidationAgent(logger *log.Logger) *ValidationAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[VALIDATE] ", log.LstdFlags)
	}
	return &ValidationAgent{logger: logger}
}

// Execute parses raw against the summary contract and runs every rule.
// contentLength is the length of the extracted source text, used by the
// cross-field consistency checks.
func (a *ValidationAgent) Execute(raw []byte, contentLength int) Result[ValidationOutcome] {
	meta := map[string]any{"contract_version": contract.Version}

	summary, err := contract.ParseCandidate(raw)
	if err != nil {
		return failKind[ValidationOutcome](ErrValidationCrashed, err.Error(), meta)
	}

	violations := contract.Check(summary, contentLength)
	outcome := ValidationOutcome{
		Valid:      len(violations) == 0,
		Violations: violations,
		Summary:    summary,
	}
	if !outcome.Valid {
		a.logger.Printf("candidate rejected: %d violations, first: %s", len(violations), violations[0])
	}
	return Succeed(outcome, meta)
}
