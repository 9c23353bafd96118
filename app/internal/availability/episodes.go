package availability

import (
	"time"

	"uptimedock/app/internal/models"
)

// Episodes returns the outage episodes of one target's pings in chronological order.
// An isolated down ping is an episode too; in the observed-gap mode it lasts zero.
func Episodes(pings []models.Ping, opts Options) []Episode {
	if len(pings) == 0 {
		return nil
	}
	return detectEpisodes(sortByTime(pings), opts)
}

// detectEpisodes walks sorted pings once, closing an episode at every up ping.
func detectEpisodes(sorted []models.Ping, opts Options) []Episode {
	var (
		eps     []Episode
		current *Episode
	)

	for i, p := range sorted {
		if !p.IsDown() {
			if current != nil {
				eps = append(eps, *current)
				current = nil
			}
			continue
		}

		if current == nil {
			current = &Episode{URL: p.URL, Start: p.TimeCheckedAt, End: p.TimeCheckedAt}
		} else if opts.Downtime == DowntimeObservedGap {
			// both this ping and the previous one are down
			current.Duration += p.TimeCheckedAt.Sub(sorted[i-1].TimeCheckedAt)
			current.End = p.TimeCheckedAt
		}
		current.Codes = append(current.Codes, p.Code())
		current.Pings++

		if opts.Downtime == DowntimeAssumedPersistent {
			d := persistence(sorted, i, opts.probeInterval())
			current.Duration += d
			current.End = p.TimeCheckedAt.Add(d)
		}
	}
	if current != nil {
		eps = append(eps, *current)
	}

	return eps
}

// persistence is how long the down ping at i is assumed to last: until the next
// sample, at most one probe interval. The last ping of the series lasts one interval.
func persistence(sorted []models.Ping, i int, interval time.Duration) time.Duration {
	if i+1 >= len(sorted) {
		return interval
	}
	return min(sorted[i+1].TimeCheckedAt.Sub(sorted[i].TimeCheckedAt), interval)
}
