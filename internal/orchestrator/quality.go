package orchestrator

import (
	"fmt"

	"github.com/thunderclaude/orchestrator/internal/plan"
)

// qualityMinRunes is the shortest synthesis worth scoring. Below this the
// gate passes automatically: a terse answer to a terse question is not a
// defect, and scoring it wastes an invocation.
const qualityMinRunes = 400

// qualityThreshold is the minimum passing score.
const qualityThreshold = 7

// QualityReport is the quality gate's verdict on a synthesized answer.
type QualityReport struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// Pass reports whether the answer clears the gate.
func (q *QualityReport) Pass() bool {
	return q.Score >= qualityThreshold
}

// parseQualityReport decodes the checker's JSON verdict. Scores outside
// 1-10 mean the checker did not follow the contract.
func parseQualityReport(raw string) (*QualityReport, error) {
	var rep QualityReport
	if err := plan.DecodeLenient(raw, &rep); err != nil {
		return nil, err
	}
	if rep.Score < 1 || rep.Score > 10 {
		return nil, fmt.Errorf("quality score %d out of range", rep.Score)
	}
	return &rep, nil
}
