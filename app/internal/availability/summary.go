// Package availability turns a series of pings into uptime statistics,
// outage episodes and trend buckets. Every function is pure: inputs are never
// modified and nothing is cached between calls.
package availability

import (
	"math"
	"slices"
	"time"

	"uptimedock/app/internal/models"
)

// Summarize computes the scalar summary of one target's pings.
// The input may be in any order.
func Summarize(pings []models.Ping, opts Options) Summary {
	s := counts(pings, opts)
	if !s.HasData() {
		return s
	}

	sorted := sortByTime(pings)
	first := sorted[0].TimeCheckedAt
	s.FirstCheck = &first

	applyEpisodes(&s, detectEpisodes(sorted, opts))
	return s
}

// SummarizeGlobal computes the summary over pings of many targets.
// Counts, uptime, mean status and last downtime cover the whole union while
// episodes are detected per URL, so pings of different targets never form one outage.
func SummarizeGlobal(pings []models.Ping, opts Options) Global {
	g := Global{
		Summary: counts(pings, opts),
		PerURL:  make(map[string]Summary),
	}
	if !g.HasData() {
		return g
	}

	sorted := sortByTime(pings)
	first := sorted[0].TimeCheckedAt
	g.FirstCheck = &first

	for url, group := range groupByURL(sorted) {
		s := counts(group, opts)
		s.FirstCheck = &group[0].TimeCheckedAt
		eps := detectEpisodes(group, opts)
		applyEpisodes(&s, eps)
		g.PerURL[url] = s

		g.TotalDowntime += s.TotalDowntime
		g.LongestDowntime = max(g.LongestDowntime, s.LongestDowntime)
		g.Outages += s.Outages
	}
	g.URLs = len(g.PerURL)

	return g
}

// counts fills everything that does not depend on chronological order,
// except LastDown which may, depending on opts.
func counts(pings []models.Ping, opts Options) Summary {
	s := Summary{
		TotalChecks:    len(pings),
		UptimePercent:  NoData,
		MeanStatusCode: NoData,
	}
	if len(pings) == 0 {
		return s
	}

	sum := 0
	for _, p := range pings {
		sum += p.Code()
		if p.IsDown() {
			s.DownChecks++
		}
	}

	s.UptimePercent = uptimePercent(s.TotalChecks, s.DownChecks)
	s.MeanStatusCode = roundMean(sum, s.TotalChecks)
	s.LastDown = lastDown(pings, opts.LastDown)
	return s
}

func applyEpisodes(s *Summary, eps []Episode) {
	s.Outages = len(eps)
	for _, e := range eps {
		s.TotalDowntime += e.Duration
		s.LongestDowntime = max(s.LongestDowntime, e.Duration)
	}
}

// uptimePercent rounds to one decimal place. total must be positive.
func uptimePercent(total, down int) float64 {
	u := float64(total-down) / float64(total) * 100
	return math.Round(u*10) / 10
}

func roundMean(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

func lastDown(pings []models.Ping, mode LastDownMode) *time.Time {
	var found *time.Time
	for i := range pings {
		p := &pings[i]
		if !p.IsDown() {
			continue
		}
		if mode == LastDownFirstInInput {
			t := p.TimeCheckedAt
			return &t
		}
		if found == nil || p.TimeCheckedAt.After(*found) {
			t := p.TimeCheckedAt
			found = &t
		}
	}
	return found
}

// sortByTime returns a chronologically sorted copy; ties keep input order.
func sortByTime(pings []models.Ping) []models.Ping {
	sorted := slices.Clone(pings)
	slices.SortStableFunc(sorted, func(a, b models.Ping) int {
		return a.TimeCheckedAt.Compare(b.TimeCheckedAt)
	})
	return sorted
}

// groupByURL splits sorted pings per URL; each group stays sorted.
func groupByURL(sorted []models.Ping) map[string][]models.Ping {
	groups := make(map[string][]models.Ping)
	for _, p := range sorted {
		groups[p.URL] = append(groups[p.URL], p)
	}
	return groups
}
