// Package scoring ranks auction bidders. The score mixes travel time,
// vehicle capacity and karma into one comparable number; higher is better.
package scoring

// Weights of the score components. These are fixed constants of the
// design, not tunables.
const (
	WeightTime     = 0.6
	WeightCapacity = 0.25
	WeightKarma    = 0.15
)

// Score computes a bidder's score from its travel time to the pickup
// point, vehicle capacity and karma, each normalized against the batch
// maximum. A non-positive maximum zeroes the corresponding component.
func Score(travelMinutes, maxMinutes, capacity, maxCapacity float64, karma, maxKarma int) float64 {
	var timeScore float64
	if maxMinutes > 0 {
		timeScore = 1 - travelMinutes/maxMinutes
	}
	var capacityScore float64
	if maxCapacity > 0 {
		capacityScore = capacity / maxCapacity
	}
	var karmaScore float64
	if maxKarma > 0 {
		karmaScore = float64(karma) / float64(maxKarma)
	}
	return WeightTime*timeScore + WeightCapacity*capacityScore + WeightKarma*karmaScore
}
