package trainer

import (
	"math"

	ag "github.com/gilchrisn/grn-inference-service/pkg/autograd"
	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

// AdamConfig holds the optimizer hyperparameters.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultAdamConfig returns the standard Adam settings for a learning rate.
func DefaultAdamConfig(lr float64) AdamConfig {
	return AdamConfig{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Validate checks the optimizer settings.
func (c AdamConfig) Validate() error {
	switch {
	case c.LearningRate <= 0:
		return models.ConfigErrorf("learning rate must be positive, got %v", c.LearningRate)
	case c.Beta1 < 0 || c.Beta1 >= 1:
		return models.ConfigErrorf("beta1 %v outside [0,1)", c.Beta1)
	case c.Beta2 < 0 || c.Beta2 >= 1:
		return models.ConfigErrorf("beta2 %v outside [0,1)", c.Beta2)
	case c.Epsilon <= 0:
		return models.ConfigErrorf("epsilon must be positive, got %v", c.Epsilon)
	}
	return nil
}

// Adam applies the Adam update rule with bias-corrected first and second
// moment estimates. It owns the moment buffers; the parameter slice must be
// the same (same order, same length) on every Step call.
type Adam struct {
	cfg  AdamConfig
	m    []float64
	v    []float64
	step int
}

// NewAdam creates an optimizer for numParams parameters.
func NewAdam(cfg AdamConfig, numParams int) (*Adam, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Adam{cfg: cfg, m: make([]float64, numParams), v: make([]float64, numParams)}, nil
}

// Step applies one update from the gradients accumulated on params and
// zeroes them.
func (o *Adam) Step(params []*ag.Value) {
	o.step++
	bc1 := 1 - math.Pow(o.cfg.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.cfg.Beta2, float64(o.step))
	for i, p := range params {
		g := p.Grad
		o.m[i] = o.cfg.Beta1*o.m[i] + (1-o.cfg.Beta1)*g
		o.v[i] = o.cfg.Beta2*o.v[i] + (1-o.cfg.Beta2)*g*g
		mHat := o.m[i] / bc1
		vHat := o.v[i] / bc2
		p.Data -= o.cfg.LearningRate * mHat / (math.Sqrt(vHat) + o.cfg.Epsilon)
		p.Grad = 0
	}
}
