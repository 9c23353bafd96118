package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"uptimedock/app/internal/availability"
	"uptimedock/app/internal/cache"
	"uptimedock/app/internal/report"
)

// chartPrefix is the cache key prefix of every chart of url; "" is the all-URLs chart.
func chartPrefix(url string) string {
	return "chart:" + url + "|"
}

// InvalidateCharts drops the cached charts of urls and the all-URLs chart.
func InvalidateCharts(charts *cache.Cache[[]byte], urls ...string) {
	if charts == nil {
		return
	}
	charts.DeletePrefix(chartPrefix(""))
	for _, url := range urls {
		charts.DeletePrefix(chartPrefix(url))
	}
}

// HandleChart renders the trend of one URL, or of all pings, as a PNG.
// Rendered images are kept in charts until it expires or is cleared.
func HandleChart(charts *cache.Cache[[]byte]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		width, err := parseWidth(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		since, err := parseSince(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		url := r.URL.Query().Get("url")

		render := func() ([]byte, error) {
			pings, err := pingsFor(url, since)
			if err != nil {
				return nil, err
			}
			title := "All URLs"
			if url != "" {
				title = url
			}
			var buf bytes.Buffer
			if err := report.RenderTrendChart(&buf, title, availability.Buckets(pings, width)); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}

		var png []byte
		if charts != nil {
			key := fmt.Sprintf("%s%s|%s", chartPrefix(url), width, r.URL.Query().Get("since"))
			png, err = charts.GetOrCompute(key, render)
		} else {
			png, err = render()
		}
		if errors.Is(err, report.ErrNotEnoughData) {
			writeError(w, http.StatusNotFound, "not enough data to draw a chart")
			return
		}
		if err != nil {
			log.Printf("render chart for %q: %v", url, err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "max-age=30")
		_, _ = w.Write(png)
	}
}

// HandleExport downloads the pings of one URL, or all pings, as a workbook
func HandleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pings, ok := pingsForRequest(w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		now := time.Now()
		if err := report.WritePingsXLSX(&buf, pings, now); err != nil {
			log.Printf("write xlsx: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="pings-%s.xlsx"`, now.UTC().Format("20060102-150405")))
		_, _ = w.Write(buf.Bytes())
	}
}
