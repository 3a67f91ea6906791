// Package conversation holds the ordered question/answer log of a chat session.
package conversation

// Exchange is one question/answer turn. Exchanges are values; once appended
// to a Store they are never modified.
type Exchange struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	// PlotURL is the absolute URL of a generated plot image, empty when none.
	PlotURL string `json:"plotUrl,omitempty" yaml:"plot_url,omitempty"`
}

// HasPlot reports whether the backend produced a plot for this exchange.
func (e Exchange) HasPlot() bool { return e.PlotURL != "" }
