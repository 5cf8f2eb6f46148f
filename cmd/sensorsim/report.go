package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/sensorsim/internal/aggregate"
	"codeberg.org/mutker/sensorsim/internal/anomaly"
	"codeberg.org/mutker/sensorsim/internal/metrics"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"codeberg.org/mutker/sensorsim/internal/simulation"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorAccent = lipgloss.Color("214")
	colorDim    = lipgloss.Color("243")
	colorBorder = lipgloss.Color("237")
	colorAlert  = lipgloss.Color("203")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headerStyle = lipgloss.NewStyle().Foreground(colorDim).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	emptyStyle  = lipgloss.NewStyle().Foreground(colorDim).Italic(true)
)

// newTable builds a bordered table; columns listed in numeric are right aligned.
func newTable(headers []string, rows [][]string, numeric ...int) *table.Table {
	right := make(map[int]bool, len(numeric))
	for _, c := range numeric {
		right[c] = true
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case right[col]:
				return numberStyle
			default:
				return cellStyle
			}
		})
}

func section(w io.Writer, title string, body string) {
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, body)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func ts(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func renderPlans(w io.Writer, runID string, plans []simulation.Plan) {
	rows := make([][]string, len(plans))
	for i, p := range plans {
		rows[i] = []string{p.DeviceID, kindList(p.Kinds), p.Interval.String()}
	}
	section(w, "Simulation "+runID, newTable([]string{"device", "sensors", "interval"}, rows, 2).String())
}

func renderMetrics(w io.Writer, snap metrics.Snapshot) {
	ids := make([]string, 0, len(snap.Devices))
	for id := range snap.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	row := func(name string, c metrics.DeviceCounters) []string {
		return []string{
			name,
			strconv.Itoa(c.Ticks()),
			strconv.Itoa(c.Committed),
			strconv.Itoa(c.Dropped),
			strconv.Itoa(c.Failed),
			strconv.Itoa(c.Readings),
		}
	}

	rows := make([][]string, 0, len(ids)+1)
	for _, id := range ids {
		rows = append(rows, row(id, snap.Devices[id]))
	}
	rows = append(rows, row("total", snap.Total))

	headers := []string{"device", "ticks", "committed", "dropped", "failed", "readings"}
	section(w, "Run summary", newTable(headers, rows, 1, 2, 3, 4, 5).String())
}

func renderDevices(w io.Writer, ids []string, catalog map[string][]sensor.Kind) {
	if len(ids) == 0 {
		section(w, "Devices", emptyStyle.Render("no devices recorded"))
		return
	}
	rows := make([][]string, len(ids))
	for i, id := range ids {
		rows[i] = []string{id, kindList(catalog[id])}
	}
	section(w, "Devices", newTable([]string{"device", "sensors"}, rows).String())
}

func renderStats(w io.Writer, stats []aggregate.Stats) {
	if len(stats) == 0 {
		section(w, "Summary statistics", emptyStyle.Render("no readings in window"))
		return
	}
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{
			s.DeviceID,
			s.Kind.String(),
			num(s.Min),
			num(s.Max),
			num(s.Mean),
			num(s.StdDev),
			strconv.Itoa(s.Count),
		}
	}
	headers := []string{"device", "sensor", "min", "max", "mean", "std dev", "count"}
	section(w, "Summary statistics", newTable(headers, rows, 2, 3, 4, 5, 6).String())
}

func renderPoints(w io.Writer, g aggregate.Granularity, points []aggregate.Point) {
	title := "Readings (" + g.String() + ")"
	if len(points) == 0 {
		section(w, title, emptyStyle.Render("no readings in window"))
		return
	}
	rows := make([][]string, len(points))
	for i, p := range points {
		rows[i] = []string{ts(p.Timestamp), p.DeviceID, p.Kind.String(), num(p.Value), p.Unit, strconv.Itoa(p.Count)}
	}
	headers := []string{"timestamp", "device", "sensor", "value", "unit", "n"}
	section(w, title, newTable(headers, rows, 3, 5).String())
}

func renderAnomalies(w io.Writer, k sensor.Kind, threshold float64, found []anomaly.Anomaly) {
	title := fmt.Sprintf("Anomalies: %s (|z| > %s)", k, num(threshold))
	if len(found) == 0 {
		section(w, title, emptyStyle.Render("none"))
		return
	}
	alert := numberStyle.Foreground(colorAlert)
	rows := make([][]string, len(found))
	for i, a := range found {
		r := a.Reading
		rows[i] = []string{ts(r.Timestamp), r.DeviceID, num(r.Value), r.Unit, alert.Render(num(a.ZScore))}
	}
	section(w, title, newTable([]string{"timestamp", "device", "value", "unit", "z-score"}, rows, 2, 4).String())
}

func kindList(kinds []sensor.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
