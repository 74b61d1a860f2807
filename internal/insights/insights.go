// Package insights serves the dashboard's analysis and learning panels.
//
// Nothing here is a model. Placeholder answers in the fixed response shape
// the dashboard renders, with a random risk score and pattern count.
package insights

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
)

// AnalysisRequest is the POST /ml-analysis body. Its contents are accepted
// but not inspected.
type AnalysisRequest struct {
	Trades     []any `json:"trades"`
	MarketData any   `json:"marketData"`
}

type Analysis struct {
	RiskScore      float64  `json:"riskScore"`
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	Factors        []string `json:"factors"`
}

// LearningRequest is the POST /ml-learning body.
type LearningRequest struct {
	Trades []any `json:"trades"`
}

type LearningResults struct {
	PatternsFound   int      `json:"patternsFound"`
	Accuracy        float64  `json:"accuracy"`
	Recommendations []string `json:"recommendations"`
}

type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error)
}

type Learner interface {
	Learn(ctx context.Context, req LearningRequest) (LearningResults, error)
}

// Placeholder implements Analyzer and Learner.
type Placeholder struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlaceholder seeds the generator; tests pass fixed seeds.
func NewPlaceholder(seed1, seed2 uint64) *Placeholder {
	return &Placeholder{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (p *Placeholder) Analyze(context.Context, AnalysisRequest) (Analysis, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Analysis{
		RiskScore:      round2(p.rng.Float64() * 100),
		Recommendation: "HOLD",
		Confidence:     0.75,
		Factors:        []string{"volatility", "trend", "volume"},
	}, nil
}

func (p *Placeholder) Learn(context.Context, LearningRequest) (LearningResults, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return LearningResults{
		PatternsFound:   1 + p.rng.IntN(10),
		Accuracy:        0.85,
		Recommendations: []string{"Reduce position size", "Consider stop losses"},
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
