package ratelimit

import "strconv"

// KeyForUser returns the limiter key for a user id.
func KeyForUser(userID uint64) string {
	return "u:" + strconv.FormatUint(userID, 10)
}
