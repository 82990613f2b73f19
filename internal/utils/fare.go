package utils

import "math"

// TicketFare returns the expected payment for a walk-up party, rounded to kopecks.
// A non-positive ticket count costs nothing.
func TicketFare(tickets int, perTicket float64) float64 {
	if tickets <= 0 || perTicket <= 0 {
		return 0
	}
	return math.Round(float64(tickets)*perTicket*100) / 100
}
