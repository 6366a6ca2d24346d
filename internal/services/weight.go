package services

type weightStep struct {
	minScore int
	weight   float64
}

// Steps are ordered from the highest trust band down.
var weightSteps = []weightStep{
	{minScore: 70, weight: 1.0},
	{minScore: 50, weight: 0.7},
	{minScore: 30, weight: 0.4},
	{minScore: 10, weight: 0.2},
}

// ReportWeight converts a reporter's trust score into the weight their report
// adds to the aggregate. Scores below the lowest band weigh nothing: the
// report is still stored for audit.
func ReportWeight(trustScore int) float64 {
	for _, step := range weightSteps {
		if trustScore >= step.minScore {
			return step.weight
		}
	}
	return 0
}
