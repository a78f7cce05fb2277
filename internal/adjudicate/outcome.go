package adjudicate

import (
	"github.com/sells-group/company-match/internal/model"
)

// OutcomeKind says how a judge call for one group ended.
type OutcomeKind int

const (
	// OutcomeOK means the judge answered with parseable verdicts.
	OutcomeOK OutcomeKind = iota
	// OutcomeCallFailed means the call itself failed after retries.
	OutcomeCallFailed
	// OutcomeMalformed means the judge answered with unusable output.
	OutcomeMalformed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeCallFailed:
		return "call_failed"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Outcome is the result of adjudicating one group.
type Outcome struct {
	Kind     OutcomeKind
	Verdicts []model.Verdict
	Err      error
}

// OK wraps parsed verdicts.
func OK(verdicts []model.Verdict) Outcome {
	return Outcome{Kind: OutcomeOK, Verdicts: verdicts}
}

// CallFailed wraps a judge transport error.
func CallFailed(err error) Outcome {
	return Outcome{Kind: OutcomeCallFailed, Err: err}
}

// Malformed wraps a parse error.
func Malformed(err error) Outcome {
	return Outcome{Kind: OutcomeMalformed, Err: err}
}

// outcomeFromResponse parses a successful judge answer.
func outcomeFromResponse(raw string) Outcome {
	verdicts, err := ParseVerdicts(raw)
	if err != nil {
		return Malformed(err)
	}
	return OK(verdicts)
}
