package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobViewKey(jobID uuid.UUID) string {
	return fmt.Sprintf("consentscan:job:%s", jobID)
}

// RateLimitKey scopes a request counter to one client.
func RateLimitKey(client string) string {
	return fmt.Sprintf("consentscan:ratelimit:%s", client)
}
