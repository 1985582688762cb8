package domain

// ChartKind is the closed set of chart types the visualization chooser may
// select. "table" is the universal fallback and is always a valid choice.
type ChartKind string

const (
	ChartLine      ChartKind = "line"
	ChartBar       ChartKind = "bar"
	ChartScatter   ChartKind = "scatter"
	ChartPie       ChartKind = "pie"
	ChartHistogram ChartKind = "histogram"
	ChartHeatmap   ChartKind = "heatmap"
	ChartArea      ChartKind = "area"
	ChartBox       ChartKind = "box"
	ChartTreemap   ChartKind = "treemap"
	ChartSunburst  ChartKind = "sunburst"
	ChartValue     ChartKind = "value"
	ChartTable     ChartKind = "table"
)

// ChartSpec is the visualization chooser's output: a chart kind plus the
// column bindings needed to render it. Fields not applicable to Kind are
// left zero-valued.
type ChartSpec struct {
	Kind      ChartKind `json:"kind"`
	XAxis     string    `json:"x_axis,omitempty"`
	YAxis     []string  `json:"y_axis,omitempty"`
	SeriesBy  string    `json:"series_by,omitempty"`
	Rationale string    `json:"rationale,omitempty"`
}
