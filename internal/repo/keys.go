package repo

import (
	"fmt"
	"time"
)

// maxKeyAttempts bounds the collision suffixes tried before giving up.
const maxKeyAttempts = 16

// cacheKey builds "<chatID>_<unixNano>", adding "_<n>" when the base is taken.
// The result stays short enough to fit in 64 bytes of callback data.
func cacheKey(chatID int64, at time.Time, attempt int) string {
	if attempt == 0 {
		return fmt.Sprintf("%d_%d", chatID, at.UnixNano())
	}
	return fmt.Sprintf("%d_%d_%d", chatID, at.UnixNano(), attempt)
}
