package httpserver

import (
	"html/template"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	chartrender "github.com/go-echarts/go-echarts/v2/render"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/filmtopia/internal/domain"
)

const (
	chartWidth  = "640px"
	chartHeight = "360px"
)

// renderSnippet renders only the chart container and its init script;
// the page layout loads echarts once.
func renderSnippet(logger *zerolog.Logger, c chartrender.Renderer) (out template.HTML) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("failed to render chart")
			out = ""
		}
	}()
	snip := c.RenderSnippet()
	return template.HTML(snip.Element + snip.Script)
}

func criterionLabels() []string {
	labels := make([]string, 0, len(domain.Criteria))
	for _, c := range domain.Criteria {
		labels = append(labels, c.Label)
	}
	return labels
}

func initOpts(id string) opts.Initialization {
	return opts.Initialization{
		ChartID: id,
		Width:   chartWidth,
		Height:  chartHeight,
	}
}

// scoresBarChart plots the ten criterion scores of one rating.
func scoresBarChart(logger *zerolog.Logger, id, title string, scores domain.Scores) template.HTML {
	values := scores.Values()
	data := make([]opts.BarData, 0, len(values))
	for _, v := range values {
		data = append(data, opts.BarData{Value: v})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(id)),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: 30},
		}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: domain.MaxScore}),
	)
	bar.SetXAxis(criterionLabels()).AddSeries("Score", data)

	return renderSnippet(logger, bar)
}

// scoresRadarChart plots the same scores on a [0, 10] spider chart.
func scoresRadarChart(logger *zerolog.Logger, id, title string, scores domain.Scores) template.HTML {
	indicators := make([]*opts.Indicator, 0, len(domain.Criteria))
	for _, c := range domain.Criteria {
		indicators = append(indicators, &opts.Indicator{Name: c.Label, Min: 0, Max: domain.MaxScore})
	}
	values := scores.Values()
	series := make([]float32, 0, len(values))
	for _, v := range values {
		series = append(series, float32(v))
	}

	radar := charts.NewRadar()
	radar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(id)),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithRadarComponentOpts(opts.RadarComponent{
			Indicator: indicators,
			Shape:     "polygon",
		}),
	)
	radar.AddSeries("Scores", []opts.RadarData{{Name: title, Value: series}})

	return renderSnippet(logger, radar)
}

// aggregateBarChart plots the per-movie average across all users.
func aggregateBarChart(logger *zerolog.Logger, id string, averages []domain.MovieAverage) template.HTML {
	if len(averages) == 0 {
		return ""
	}
	movies := make([]string, 0, len(averages))
	data := make([]opts.BarData, 0, len(averages))
	for _, a := range averages {
		movies = append(movies, a.Movie)
		data = append(data, opts.BarData{Value: a.Average})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(id)),
		charts.WithTitleOpts(opts.Title{Title: "Average rating by movie"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: domain.MaxScore}),
	)
	bar.SetXAxis(movies).AddSeries("Average", data)

	return renderSnippet(logger, bar)
}
