package testkit

import (
	"math"
	"math/rand"
	"strconv"
	"time"

	"goattrib/domain/dataset"
)

// ChannelSpec describes one synthetic spend channel
type ChannelSpec struct {
	Name   string  `json:"name"`
	Base   float64 `json:"base"`   // spend in the first period
	Trend  float64 `json:"trend"`  // total drift over the whole range
	Noise  float64 `json:"noise"`  // standard deviation of spend noise
	Effect float64 `json:"effect"` // true coefficient on the target
}

// ControlSpec describes one synthetic control column
type ControlSpec struct {
	Name      string  `json:"name"`
	Amplitude float64 `json:"amplitude"` // sine amplitude over one cycle
	Noise     float64 `json:"noise"`
	Effect    float64 `json:"effect"`
}

// MarketingGeneratorConfig configures the synthetic marketing dataset
type MarketingGeneratorConfig struct {
	Periods    int           `json:"periods"`
	StartDate  time.Time     `json:"start_date"`
	Intercept  float64       `json:"intercept"`
	NoiseSigma float64       `json:"noise_sigma"`
	DateColumn string        `json:"date_column"`
	Target     string        `json:"target"`
	Channels   []ChannelSpec `json:"channels"`
	Controls   []ControlSpec `json:"controls"`
	Seed       int64         `json:"seed"`
}

// DefaultMarketingConfig returns twelve months of three-channel spend with a
// seasonality control
func DefaultMarketingConfig() MarketingGeneratorConfig {
	return MarketingGeneratorConfig{
		Periods:    12,
		StartDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Intercept:  500,
		NoiseSigma: 100,
		DateColumn: "Date",
		Target:     "Conversions",
		Channels: []ChannelSpec{
			{Name: "Channel_A_Spend", Base: 5000, Trend: 1000, Noise: 300, Effect: 0.15},
			{Name: "Channel_B_Spend", Base: 3000, Trend: 500, Noise: 200, Effect: 0.25},
			{Name: "Channel_C_Spend", Base: 2000, Trend: -300, Noise: 150, Effect: 0.10},
		},
		Controls: []ControlSpec{
			{Name: "Seasonality_Index", Amplitude: 100, Effect: 1},
		},
		Seed: 42,
	}
}

// TwoChannelConfig returns 24 months of
// Sales = 100 + 0.5*Channel_A + 0.3*Channel_B + 20*Control + N(0, 50)
func TwoChannelConfig() MarketingGeneratorConfig {
	return MarketingGeneratorConfig{
		Periods:    24,
		StartDate:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Intercept:  100,
		NoiseSigma: 50,
		DateColumn: "Date",
		Target:     "Sales",
		Channels: []ChannelSpec{
			{Name: "Channel_A", Base: 1000, Trend: 400, Noise: 250, Effect: 0.5},
			{Name: "Channel_B", Base: 800, Trend: -200, Noise: 200, Effect: 0.3},
		},
		Controls: []ControlSpec{
			{Name: "Control", Amplitude: 5, Noise: 2, Effect: 20},
		},
		Seed: 7,
	}
}

// MarketingData is the generated dataset in columnar form
type MarketingData struct {
	Config   MarketingGeneratorConfig
	Dates    []time.Time
	Target   []float64
	Channels [][]float64
	Controls [][]float64
}

// MarketingDataGenerator generates monthly spend and outcome series
type MarketingDataGenerator struct {
	config MarketingGeneratorConfig
	rng    *rand.Rand
}

// NewMarketingDataGenerator creates a generator seeded from config
func NewMarketingDataGenerator(config MarketingGeneratorConfig) *MarketingDataGenerator {
	return &MarketingDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate produces one dataset. Spend is floored at 100 like real budgets.
func (g *MarketingDataGenerator) Generate() *MarketingData {
	cfg := g.config
	n := cfg.Periods
	data := &MarketingData{
		Config:   cfg,
		Dates:    make([]time.Time, n),
		Target:   make([]float64, n),
		Channels: make([][]float64, len(cfg.Channels)),
		Controls: make([][]float64, len(cfg.Controls)),
	}

	for i := 0; i < n; i++ {
		data.Dates[i] = cfg.StartDate.AddDate(0, i, 0)
	}

	frac := func(i int) float64 {
		if n <= 1 {
			return 0
		}
		return float64(i) / float64(n-1)
	}

	for c, ch := range cfg.Channels {
		col := make([]float64, n)
		for i := range col {
			col[i] = math.Max(ch.Base+ch.Trend*frac(i)+g.rng.NormFloat64()*ch.Noise, 100)
		}
		data.Channels[c] = col
	}
	for c, ctl := range cfg.Controls {
		col := make([]float64, n)
		for i := range col {
			col[i] = ctl.Amplitude*math.Sin(2*math.Pi*frac(i)) + g.rng.NormFloat64()*ctl.Noise
		}
		data.Controls[c] = col
	}

	for i := 0; i < n; i++ {
		y := cfg.Intercept + g.rng.NormFloat64()*cfg.NoiseSigma
		for c, ch := range cfg.Channels {
			y += ch.Effect * data.Channels[c][i]
		}
		for c, ctl := range cfg.Controls {
			y += ctl.Effect * data.Controls[c][i]
		}
		data.Target[i] = y
	}

	return data
}

// Mapping returns the column roles of the generated data
func (d *MarketingData) Mapping() dataset.ColumnMapping {
	m := dataset.ColumnMapping{
		DateColumn:   d.Config.DateColumn,
		TargetColumn: d.Config.Target,
	}
	for _, ch := range d.Config.Channels {
		m.FeatureColumns = append(m.FeatureColumns, ch.Name)
	}
	for _, ctl := range d.Config.Controls {
		m.ControlColumns = append(m.ControlColumns, ctl.Name)
	}
	return m
}

// Table renders the data as a raw string table: date, channels, target, controls
func (d *MarketingData) Table() *dataset.Table {
	t := &dataset.Table{Columns: []string{d.Config.DateColumn}}
	for _, ch := range d.Config.Channels {
		t.Columns = append(t.Columns, ch.Name)
	}
	t.Columns = append(t.Columns, d.Config.Target)
	for _, ctl := range d.Config.Controls {
		t.Columns = append(t.Columns, ctl.Name)
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	t.Rows = make([][]string, len(d.Dates))
	for i := range d.Dates {
		row := []string{d.Dates[i].Format("2006-01-02")}
		for c := range d.Channels {
			row = append(row, format(d.Channels[c][i]))
		}
		row = append(row, format(d.Target[i]))
		for c := range d.Controls {
			row = append(row, format(d.Controls[c][i]))
		}
		t.Rows[i] = row
	}
	return t
}
