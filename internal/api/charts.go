package api

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// showLaneCharts renders a quick line chart (HTML) of per-lane occupancy
// over the in-memory history ring using go-echarts. This is a debugging
// endpoint (no auth) for eyeballing lane trends without a frontend.
func (s *Server) showLaneCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	samples := s.engine.History()
	if len(samples) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no history samples available")
		return
	}

	laneIDs := make([]int, 0, len(s.engine.Lanes()))
	for _, lane := range s.engine.Lanes() {
		laneIDs = append(laneIDs, lane.ID)
	}
	sort.Ints(laneIDs)

	xAxis := make([]string, len(samples))
	for i, sample := range samples {
		xAxis[i] = sample.At.Format("15:04:05")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Lane Occupancy",
			Theme:     "dark",
			Width:     "1100px",
			Height:    "550px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Lane Occupancy",
			Subtitle: fmt.Sprintf("samples=%d lanes=%d", len(samples), len(laneIDs)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "vehicles"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)

	for _, laneID := range laneIDs {
		data := make([]opts.LineData, len(samples))
		for i, sample := range samples {
			data[i] = opts.LineData{Value: sample.LaneTotals[laneID]}
		}
		line.AddSeries(fmt.Sprintf("lane %d", laneID), data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
