package escrow

import "math"

// WinnerSplit divides a match pot between the winner and the platform.
// The winner share is floored to the cent and the platform amount is
// computed by subtraction, never rounded on its own, so the two always sum
// to exactly the pot. The platform absorbs the rounding remainder.
func WinnerSplit(stake float64, winnerSharePercent int) (totalPot, winnerAmount, platformAmount float64) {
	totalPot = 2 * stake
	share := float64(winnerSharePercent) / 100.0
	winnerAmount = math.Floor(totalPot*share*100) / 100
	platformAmount = totalPot - winnerAmount
	return totalPot, winnerAmount, platformAmount
}
