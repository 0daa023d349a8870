package analysis

// #region analysis-config
// Config holds tolerances for the long-run checks.
type Config struct {
	Tolerance float64 // absolute deviation allowed from the analytic value
	BurnIn    int     // leading states ignored before measuring
}

// DefaultConfig returns a 0.01 tolerance with no burn-in.
func DefaultConfig() Config {
	return Config{
		Tolerance: 0.01,
	}
}

// #endregion analysis-config

// #region metric
// Metric captures one comparison of an empirical value with its expectation.
type Metric struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Expected float64 `json:"expected"`
	Pass     bool    `json:"pass"`
}

// #endregion metric

// #region report
// Report is the result of Evaluate.
type Report struct {
	Steps   int      `json:"steps"`
	Passed  bool     `json:"passed"`
	Metrics []Metric `json:"metrics"`
	Reason  string   `json:"reason"`
}

// #endregion report
