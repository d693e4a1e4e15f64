package domain

import "math"

const (
	// BasePoints is awarded for every correct answer.
	BasePoints = 100
	// MaxTimeBonus is added for an instant correct answer and decays linearly to zero.
	MaxTimeBonus = 50
)

// Score returns the points for one answer. A non-positive totalTime disables the time bonus.
func Score(isCorrect bool, timeTaken, totalTime float64) int {
	if !isCorrect {
		return 0
	}
	if totalTime <= 0 || math.IsNaN(totalTime) || math.IsNaN(timeTaken) {
		return BasePoints
	}
	if timeTaken < 0 {
		timeTaken = 0
	}
	remaining := (totalTime - timeTaken) / totalTime
	remaining = math.Max(0, math.Min(1, remaining))
	return BasePoints + int(math.Floor(remaining*MaxTimeBonus))
}
