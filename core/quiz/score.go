package quiz

import "github.com/volatiletech/null/v8"

// KeptScore reduces the finished attempts scores per policy (highest by default).
// It is null when no attempt is finished.
func KeptScore(attempts []Attempt, policy string) null.Float64 {
	var (
		kept   null.Float64
		latest int
		sum    float64
		count  int
	)
	for _, a := range attempts {
		if !a.IsFinished() || !a.Score.Valid {
			continue
		}
		score := a.Score.Float64
		sum += score
		count++

		switch policy {
		case PolicyLatest:
			if a.Number > latest {
				latest = a.Number
				kept = null.Float64From(score)
			}
		case PolicyAverage:
		default:
			if !kept.Valid || score > kept.Float64 {
				kept = null.Float64From(score)
			}
		}
	}
	if policy == PolicyAverage && count > 0 {
		kept = null.Float64From(sum / float64(count))
	}
	return kept
}
