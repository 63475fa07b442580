package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gol50/domain/threshold"
)

// MaturityGeneratorConfig configures the synthetic maturity-at-length generator.
// The true link is Intercept + Slope*length + SexEffect*sex + u[group].
type MaturityGeneratorConfig struct {
	Observations int     `json:"observations"`
	MinLength    float64 `json:"min_length"`
	MaxLength    float64 `json:"max_length"`
	Intercept    float64 `json:"intercept"`
	Slope        float64 `json:"slope"`
	SexEffect    float64 `json:"sex_effect"`
	GroupCount   int     `json:"group_count"`
	GroupSD      float64 `json:"group_sd"`
	Seed         uint64  `json:"seed"`
}

// DefaultMaturityConfig returns a population whose females mature at 50 length units
func DefaultMaturityConfig() MaturityGeneratorConfig {
	return MaturityGeneratorConfig{
		Observations: 600,
		MinLength:    10,
		MaxLength:    90,
		Intercept:    -5.0,
		Slope:        0.1,
		SexEffect:    -1.0,
		Seed:         42,
	}
}

// TrueL50 returns the length at which the population-level probability is 0.5
func (c MaturityGeneratorConfig) TrueL50(sex float64) float64 {
	return -(c.Intercept + c.SexEffect*sex) / c.Slope
}

// MaturityDataGenerator generates binary maturity observations
type MaturityDataGenerator struct {
	config MaturityGeneratorConfig
	rng    *rand.Rand
}

// NewMaturityDataGenerator creates a new generator
func NewMaturityDataGenerator(config MaturityGeneratorConfig) *MaturityDataGenerator {
	return &MaturityDataGenerator{
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, 0x6d61747572697479)),
	}
}

// Generate draws one dataset with columns "length", "sex" and response "mature".
// When GroupCount > 0 observations are spread over groups "g00", "g01", ...
// with random intercepts drawn from N(0, GroupSD^2).
func (g *MaturityDataGenerator) Generate() *threshold.Dataset {
	c := g.config
	n := c.Observations
	length := make([]float64, n)
	sex := make([]float64, n)
	mature := make([]float64, n)

	var groupEffects []float64
	var groups []string
	if c.GroupCount > 0 {
		groupEffects = make([]float64, c.GroupCount)
		for i := range groupEffects {
			groupEffects[i] = g.rng.NormFloat64() * c.GroupSD
		}
		groups = make([]string, n)
	}

	for i := 0; i < n; i++ {
		length[i] = c.MinLength + g.rng.Float64()*(c.MaxLength-c.MinLength)
		sex[i] = float64(i % 2)
		eta := c.Intercept + c.Slope*length[i] + c.SexEffect*sex[i]
		if groups != nil {
			k := i % c.GroupCount
			groups[i] = fmt.Sprintf("g%02d", k)
			eta += groupEffects[k]
		}
		if g.rng.Float64() < 1/(1+math.Exp(-eta)) {
			mature[i] = 1
		}
	}

	ds := &threshold.Dataset{
		Response: "mature",
		Columns: map[string][]float64{
			"length": length,
			"sex":    sex,
			"mature": mature,
		},
	}
	if groups != nil {
		ds.Group = "site"
		ds.Groups = groups
	}
	return ds
}
