package aggregate

// Colours used by the chart datasets.
const (
	AdditionsColor = "rgba(75,192,192,1)"
	DeletionsColor = "#742774"
	GainColor      = "#38A169"
	LossColor      = "#E53E3E"
)

// Dataset is one renderable series.
type Dataset struct {
	Label  string   `json:"label"`
	Data   []int64  `json:"data"`
	Colors []string `json:"colors"`
}

// Charts groups the line, bar and donut views of a Result.
type Charts struct {
	Labels []string  `json:"labels"`
	Line   []Dataset `json:"line"`
	Bar    Dataset   `json:"bar"`
	Donut  Dataset   `json:"donut"`
}

// Charts builds the chart datasets. It allocates fresh slices on every call.
func (r Result) Charts() Charts {
	barColors := make([]string, len(r.Bands))
	for i, b := range r.Bands {
		barColors[i] = bandColor(b)
	}

	return Charts{
		Labels: append([]string{}, r.Labels...),
		Line: []Dataset{
			{Label: "Additions", Data: append([]int64{}, r.Additions...), Colors: []string{AdditionsColor}},
			{Label: "Deletions", Data: append([]int64{}, r.Deletions...), Colors: []string{DeletionsColor}},
		},
		Bar: Dataset{Label: "Net change", Data: append([]int64{}, r.Net...), Colors: barColors},
		Donut: Dataset{
			Label:  "Total changes",
			Data:   []int64{r.Totals.Additions, r.Totals.Deletions},
			Colors: []string{AdditionsColor, DeletionsColor},
		},
	}
}

func bandColor(b Band) string {
	if b == Loss {
		return LossColor
	}
	return GainColor
}
