package app

import (
	"fmt"
	"math/rand"
)

// generateTicketCodes issues count printable codes in the historical
// three-letters-four-digits format (e.g. "KQZ0417"). Codes are display
// artifacts; the booking ID is the unique handle.
func generateTicketCodes(count int) []string {
	codes := make([]string, count)
	for i := range codes {
		codes[i] = fmt.Sprintf("%c%c%c%04d",
			'A'+rand.Intn(26),
			'A'+rand.Intn(26),
			'A'+rand.Intn(26),
			rand.Intn(10000),
		)
	}
	return codes
}
