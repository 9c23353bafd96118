package availability

import (
	"iter"
	"slices"
	"time"

	"uptimedock/app/internal/models"
)

// Bucketize groups pings into fixed-width buckets keyed by the truncated timestamp.
// Buckets come out in ascending start order and empty intervals are skipped.
// A non-positive width falls back to DefaultBucketWidth.
//
// The pings are copied when Bucketize is called; grouping happens while the
// sequence is iterated.
func Bucketize(pings []models.Ping, width time.Duration) iter.Seq[Bucket] {
	if width <= 0 {
		width = DefaultBucketWidth
	}
	sorted := sortByTime(pings)

	return func(yield func(Bucket) bool) {
		var (
			cur Bucket
			sum int
		)
		for i, p := range sorted {
			start := p.TimeCheckedAt.Truncate(width)
			if i > 0 && !start.Equal(cur.Start) {
				if !yield(closeBucket(cur, sum)) {
					return
				}
				cur, sum = Bucket{}, 0
			}
			if cur.Count == 0 {
				cur.Start = start
			}

			cur.Count++
			sum += p.Code()
			if p.IsDown() {
				cur.DownCount++
			}
		}
		if cur.Count > 0 {
			yield(closeBucket(cur, sum))
		}
	}
}

// Buckets collects Bucketize into a slice
func Buckets(pings []models.Ping, width time.Duration) []Bucket {
	return slices.Collect(Bucketize(pings, width))
}

func closeBucket(b Bucket, sum int) Bucket {
	b.MeanStatusCode = roundMean(sum, b.Count)
	return b
}
