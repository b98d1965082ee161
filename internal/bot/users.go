package bot

import (
	"sync"

	"github.com/hectic-downloader/server/pkg/metrics"
)

// userSet remembers which users have talked to the bot since start.
type userSet struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func newUserSet() *userSet {
	return &userSet{ids: make(map[int64]struct{})}
}

func (u *userSet) Track(id int64) {
	if id == 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.ids[id]; ok {
		return
	}
	u.ids[id] = struct{}{}
	metrics.UsersSeen.Set(float64(len(u.ids)))
}

func (u *userSet) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.ids)
}
