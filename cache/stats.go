package cache

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries  int    // executors cached
	Hits     uint64 // lookups served without building
	Misses   uint64 // lookups that entered the build path
	Builds   uint64 // successful backend compilations
	Failures uint64 // failed builds
	Shared   uint64 // misses whose build result went to more than one caller
}

// HitRate returns hits over all lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (s Stats) String() string {
	return fmt.Sprintf("entries=%s hits=%s misses=%s builds=%s failures=%s shared=%s hit-rate=%s%%",
		humanize.Comma(int64(s.Entries)),
		humanize.Comma(int64(s.Hits)),
		humanize.Comma(int64(s.Misses)),
		humanize.Comma(int64(s.Builds)),
		humanize.Comma(int64(s.Failures)),
		humanize.Comma(int64(s.Shared)),
		humanize.FtoaWithDigits(s.HitRate()*100, 1),
	)
}
