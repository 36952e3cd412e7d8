package store

import (
	"context"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

// StepStats summarizes the audit log for one generation step.
type StepStats struct {
	Step     model.GenerationStep `json:"step"`
	Runs     int                  `json:"runs"`
	Failures int                  `json:"failures"`
}

// RunStats counts runs and failures per step, in pipeline order.
func (s *Store) RunStats(ctx context.Context) ([]StepStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, COUNT(*), SUM(CASE WHEN error != '' THEN 1 ELSE 0 END)
		 FROM generation_runs GROUP BY step`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byStep := make(map[model.GenerationStep]StepStats)
	for rows.Next() {
		var st StepStats
		if err := rows.Scan(&st.Step, &st.Runs, &st.Failures); err != nil {
			return nil, err
		}
		byStep[st.Step] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]StepStats, 0, 3)
	for _, step := range []model.GenerationStep{model.StepBank, model.StepPaperText, model.StepPaperData} {
		st := byStep[step]
		st.Step = step
		out = append(out, st)
	}
	return out, nil
}
