package scoring

import "time"

const (
	// PointsPerRound is multiplied by the round number for a correct attempt
	PointsPerRound = 100
	// MaxSpeedBonus is awarded for an instant correct answer
	MaxSpeedBonus = 50
	// SpeedBonusWindow is the reaction time after which no bonus is given
	SpeedBonusWindow = 5 * time.Second
)

// Service computes points for attempts
type Service struct{}

// New creates a new scoring Service
func New() *Service {
	return &Service{}
}

// Points returns the points earned by an attempt in the given round.
// Incorrect attempts earn nothing. Correct attempts earn the round base plus
// a bonus that falls linearly to zero across the speed bonus window.
func (s *Service) Points(roundNumber int, correct bool, reactionTime time.Duration) int {
	if !correct {
		return 0
	}
	return PointsPerRound*roundNumber + s.SpeedBonus(reactionTime)
}

// SpeedBonus returns the truncated reaction-time bonus
func (s *Service) SpeedBonus(reactionTime time.Duration) int {
	if reactionTime < 0 || reactionTime >= SpeedBonusWindow {
		return 0
	}
	ms := float64(reactionTime.Milliseconds())
	window := float64(SpeedBonusWindow.Milliseconds())
	return int(MaxSpeedBonus * (1 - ms/window))
}
