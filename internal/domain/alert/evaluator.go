package alert

import "github.com/surveyhos/surveyhos/internal/domain/response"

// Threshold is the average rating below which a response is low-scoring.
const Threshold = 2.5

// Decision is the outcome of scoring one response.
type Decision struct {
	Triggered bool    `json:"triggered"`
	AvgScore  float64 `json:"avg_score"`
	Rated     int     `json:"rated"`
}

// Evaluate averages the rated answers of r. Free-text answers do not count,
// and a response without ratings scores 0 and never triggers.
func Evaluate(r *response.Response) Decision {
	ratings := r.Ratings()
	if len(ratings) == 0 {
		return Decision{}
	}
	sum := 0
	for _, v := range ratings {
		sum += v
	}
	avg := float64(sum) / float64(len(ratings))
	return Decision{
		Triggered: avg > 0 && avg < Threshold,
		AvgScore:  avg,
		Rated:     len(ratings),
	}
}
