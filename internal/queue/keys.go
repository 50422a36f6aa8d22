package queue

import "github.com/kiranshivaraju/consentscan/pkg/models"

const keyPrefix = "consentscan:queue:"

// Key is the Redis list holding references for tier.
func Key(tier models.Priority) string {
	return keyPrefix + string(tier)
}
