package output

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// GanttChart lays out resource schedules as one row per resource
type GanttChart struct {
	Width        int
	Height       int
	MarginLeft   int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	RowHeight    int
	StartTime    time.Time
	EndTime      time.Time
}

// GanttBar is one scheduled operation
type GanttBar struct {
	Label  string
	Status entities.OperationStatus
	Start  time.Time
	End    time.Time
	X      int
	Width  int
	Color  string
}

// NewGanttChart sizes a chart to cover every scheduled window
func NewGanttChart(schedules []*dto.ResourceSchedule) *GanttChart {
	rowHeight := 30
	gc := &GanttChart{
		Width:        1200,
		Height:       len(schedules)*rowHeight + 140,
		MarginLeft:   160,
		MarginTop:    60,
		MarginRight:  60,
		MarginBottom: 80,
		RowHeight:    rowHeight,
	}

	first := true
	for _, schedule := range schedules {
		for _, op := range schedule.Operations {
			window, ok := op.Interval()
			if !ok {
				continue
			}
			if first || window.Start.Before(gc.StartTime) {
				gc.StartTime = window.Start
			}
			if first || window.End.After(gc.EndTime) {
				gc.EndTime = window.End
			}
			first = false
		}
	}
	if first {
		gc.Height = 200
		return gc
	}

	padding := gc.EndTime.Sub(gc.StartTime) / 20
	if padding < 30*time.Minute {
		padding = 30 * time.Minute
	}
	gc.StartTime = gc.StartTime.Add(-padding)
	gc.EndTime = gc.EndTime.Add(padding)
	return gc
}

// GenerateSVG renders the chart; labels resolve run numbers for bar captions
func (gc *GanttChart) GenerateSVG(schedules []*dto.ResourceSchedule, labels Labels) string {
	if gc.EndTime.IsZero() {
		return gc.generateEmptyChart()
	}

	var svg strings.Builder

	svg.WriteString(fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`, gc.Width, gc.Height))
	svg.WriteString(`<defs><style>`)
	svg.WriteString(`.row-label { font-family: Arial, sans-serif; font-size: 12px; fill: #333; }`)
	svg.WriteString(`.time-label { font-family: Arial, sans-serif; font-size: 10px; fill: #666; }`)
	svg.WriteString(`.title { font-family: Arial, sans-serif; font-size: 16px; font-weight: bold; fill: #333; }`)
	svg.WriteString(`.grid-line { stroke: #e0e0e0; stroke-width: 1; }`)
	svg.WriteString(`.op-bar { stroke: #333; stroke-width: 1; }`)
	svg.WriteString(`.op-text { font-family: Arial, sans-serif; font-size: 9px; fill: white; }`)
	svg.WriteString(`</style></defs>`)

	svg.WriteString(fmt.Sprintf(`<rect width="%d" height="%d" fill="white"/>`, gc.Width, gc.Height))
	svg.WriteString(fmt.Sprintf(`<text x="%d" y="30" class="title" text-anchor="middle">Resource Timeline</text>`, gc.Width/2))

	interval, layout := gc.tickInterval()
	gc.drawTimeAxis(&svg, interval, layout)
	gc.drawTimeGrid(&svg, len(schedules), interval)

	for i, schedule := range schedules {
		y := gc.MarginTop + i*gc.RowHeight
		svg.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="row-label" text-anchor="end">%s</text>`,
			gc.MarginLeft-15, y+gc.RowHeight/2+4, html.EscapeString(schedule.Resource.Code)))
		svg.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`,
			gc.MarginLeft, y+gc.RowHeight, gc.Width-gc.MarginRight, y+gc.RowHeight))

		for _, bar := range gc.createBars(schedule.Operations, labels) {
			gc.drawBar(&svg, bar, y)
		}
	}

	gc.drawLegend(&svg)

	svg.WriteString(`</svg>`)
	return svg.String()
}

// createBars converts scheduled operations to bars
func (gc *GanttChart) createBars(ops []*entities.Operation, labels Labels) []GanttBar {
	var bars []GanttBar
	for _, op := range ops {
		window, ok := op.Interval()
		if !ok {
			continue
		}
		x := gc.xFor(window.Start)
		width := gc.xFor(window.End) - x
		if width < 2 {
			width = 2
		}
		bars = append(bars, GanttBar{
			Label:  fmt.Sprintf("%s/%s", labels.run(op.RunID), op.OperationCode),
			Status: op.Status,
			Start:  window.Start,
			End:    window.End,
			X:      x,
			Width:  width,
			Color:  gc.getBarColor(op.Status),
		})
	}
	return bars
}

func (gc *GanttChart) xFor(t time.Time) int {
	chartWidth := gc.Width - gc.MarginLeft - gc.MarginRight
	total := gc.EndTime.Sub(gc.StartTime)
	return gc.MarginLeft + int(float64(t.Sub(gc.StartTime))/float64(total)*float64(chartWidth))
}

func (gc *GanttChart) tickInterval() (time.Duration, string) {
	hours := gc.EndTime.Sub(gc.StartTime).Hours()
	switch {
	case hours <= 12:
		return time.Hour, "15:04"
	case hours <= 72:
		return 6 * time.Hour, "Jan 2 15:04"
	case hours <= 24*30:
		return 24 * time.Hour, "Jan 2"
	default:
		return 7 * 24 * time.Hour, "Jan 2"
	}
}

func (gc *GanttChart) drawTimeAxis(svg *strings.Builder, interval time.Duration, layout string) {
	axisY := gc.Height - gc.MarginBottom
	for t := gc.StartTime.Truncate(interval); t.Before(gc.EndTime); t = t.Add(interval) {
		x := gc.xFor(t)
		if x >= gc.MarginLeft && x <= gc.Width-gc.MarginRight {
			svg.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="time-label" text-anchor="middle">%s</text>`,
				x, axisY+15, t.Format(layout)))
		}
	}
	svg.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`,
		gc.MarginLeft, axisY, gc.Width-gc.MarginRight, axisY))
}

func (gc *GanttChart) drawTimeGrid(svg *strings.Builder, numRows int, interval time.Duration) {
	gridBottom := gc.MarginTop + int(math.Max(1, float64(numRows)))*gc.RowHeight
	for t := gc.StartTime.Truncate(interval); t.Before(gc.EndTime); t = t.Add(interval) {
		x := gc.xFor(t)
		if x >= gc.MarginLeft && x <= gc.Width-gc.MarginRight {
			svg.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`,
				x, gc.MarginTop, x, gridBottom))
		}
	}
}

func (gc *GanttChart) drawBar(svg *strings.Builder, bar GanttBar, rowY int) {
	barHeight := gc.RowHeight - 4
	barY := rowY + 2

	svg.WriteString(`<g>`)
	svg.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="%d" height="%d" fill="%s" class="op-bar"/>`,
		bar.X, barY, bar.Width, barHeight, bar.Color))
	if bar.Width > 60 {
		svg.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="op-text" text-anchor="middle">%s</text>`,
			bar.X+bar.Width/2, barY+barHeight/2+3, html.EscapeString(bar.Label)))
	}
	svg.WriteString(fmt.Sprintf(`<title>%s %s %s - %s</title>`,
		html.EscapeString(bar.Label), bar.Status, bar.Start.Format(timeLayout), bar.End.Format(timeLayout)))
	svg.WriteString(`</g>`)
}

func (gc *GanttChart) drawLegend(svg *strings.Builder) {
	legendX := gc.Width - gc.MarginRight - 160
	legendY := gc.Height - gc.MarginBottom + 30

	items := []entities.OperationStatus{
		entities.OperationPending,
		entities.OperationQueued,
		entities.OperationRunning,
	}
	for i, status := range items {
		x := legendX + i*55
		svg.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="12" height="8" fill="%s"/>`,
			x, legendY, gc.getBarColor(status)))
		svg.WriteString(fmt.Sprintf(`<text x="%d" y="%d" class="time-label">%s</text>`,
			x+15, legendY+8, status))
	}
}

func (gc *GanttChart) getBarColor(status entities.OperationStatus) string {
	switch status {
	case entities.OperationPending:
		return "#9E9E9E"
	case entities.OperationQueued:
		return "#2196F3"
	case entities.OperationRunning:
		return "#4CAF50"
	default:
		return "#FF9800"
	}
}

func (gc *GanttChart) generateEmptyChart() string {
	return fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
		<rect width="%d" height="%d" fill="white"/>
		<text x="%d" y="%d" class="title" text-anchor="middle">No Scheduled Operations</text>
		<style>
			.title { font-family: Arial, sans-serif; font-size: 16px; fill: #666; }
		</style>
	</svg>`, gc.Width, gc.Height, gc.Width, gc.Height, gc.Width/2, gc.Height/2)
}
