// Package autograd implements a scalar reverse-mode automatic
// differentiation engine. Every operation records its inputs and local
// gradients; Backward walks the graph in reverse topological order and
// accumulates gradients into the leaves.
package autograd

import "math"

// Value is a scalar node in the computation graph.
type Value struct {
	Data       float64
	Grad       float64
	children   []*Value
	localGrads []float64
}

// V wraps a constant float into a leaf Value.
func V(x float64) *Value {
	return &Value{Data: x}
}

// Add returns a + b.
func Add(a, b *Value) *Value {
	return &Value{Data: a.Data + b.Data, children: []*Value{a, b}, localGrads: []float64{1, 1}}
}

// Sub returns a - b.
func Sub(a, b *Value) *Value {
	return &Value{Data: a.Data - b.Data, children: []*Value{a, b}, localGrads: []float64{1, -1}}
}

// Mul returns a * b.
func Mul(a, b *Value) *Value {
	return &Value{Data: a.Data * b.Data, children: []*Value{a, b}, localGrads: []float64{b.Data, a.Data}}
}

// Scale returns c * a for a constant c (no gradient flows into c).
func Scale(c float64, a *Value) *Value {
	return &Value{Data: c * a.Data, children: []*Value{a}, localGrads: []float64{c}}
}

// Neg returns -a.
func Neg(a *Value) *Value {
	return Scale(-1, a)
}

// Exp returns e^a.
func Exp(a *Value) *Value {
	e := math.Exp(a.Data)
	return &Value{Data: e, children: []*Value{a}, localGrads: []float64{e}}
}

// Log returns ln(a).
func Log(a *Value) *Value {
	return &Value{Data: math.Log(a.Data), children: []*Value{a}, localGrads: []float64{1 / a.Data}}
}

// Sigmoid returns 1 / (1 + e^-a).
func Sigmoid(a *Value) *Value {
	s := sigmoid(a.Data)
	return &Value{Data: s, children: []*Value{a}, localGrads: []float64{s * (1 - s)}}
}

// LeakyReLU returns a for a > 0 and slope*a otherwise.
func LeakyReLU(a *Value, slope float64) *Value {
	val, grad := a.Data, 1.0
	if a.Data <= 0 {
		val = slope * a.Data
		grad = slope
	}
	return &Value{Data: val, children: []*Value{a}, localGrads: []float64{grad}}
}

// ELU returns a for a > 0 and e^a - 1 otherwise.
func ELU(a *Value) *Value {
	if a.Data > 0 {
		return &Value{Data: a.Data, children: []*Value{a}, localGrads: []float64{1}}
	}
	e := math.Exp(a.Data)
	return &Value{Data: e - 1, children: []*Value{a}, localGrads: []float64{e}}
}

// Dot returns the inner product of two equal-length vectors as one node.
// The fused form keeps the graph small compared to chained Add/Mul.
func Dot(a, b []*Value) *Value {
	n := len(a)
	sum := 0.0
	children := make([]*Value, 0, 2*n)
	grads := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		sum += a[i].Data * b[i].Data
		children = append(children, a[i], b[i])
		grads = append(grads, b[i].Data, a[i].Data)
	}
	return &Value{Data: sum, children: children, localGrads: grads}
}

// Sum returns the sum of all elements.
func Sum(xs []*Value) *Value {
	sum := 0.0
	grads := make([]float64, len(xs))
	for i, x := range xs {
		sum += x.Data
		grads[i] = 1
	}
	return &Value{Data: sum, children: xs, localGrads: grads}
}

// WeightedSum returns sum_i(ws[i] * xs[i]) as one node.
func WeightedSum(ws, xs []*Value) *Value {
	n := len(xs)
	sum := 0.0
	children := make([]*Value, 0, 2*n)
	grads := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		sum += ws[i].Data * xs[i].Data
		children = append(children, ws[i], xs[i])
		grads = append(grads, xs[i].Data, ws[i].Data)
	}
	return &Value{Data: sum, children: children, localGrads: grads}
}

// Softmax returns the softmax of logits, shifted by the max for stability.
func Softmax(logits []*Value) []*Value {
	maxVal := math.Inf(-1)
	for _, l := range logits {
		if l.Data > maxVal {
			maxVal = l.Data
		}
	}
	exps := make([]*Value, len(logits))
	for i, l := range logits {
		exps[i] = Exp(Sub(l, V(maxVal)))
	}
	sum := Sum(exps)
	inv := &Value{Data: 1 / sum.Data, children: []*Value{sum}, localGrads: []float64{-1 / (sum.Data * sum.Data)}}
	out := make([]*Value, len(logits))
	for i := range exps {
		out[i] = Mul(exps[i], inv)
	}
	return out
}

// BCEWithLogits returns the binary cross-entropy between sigmoid(logit) and
// the constant target, computed in the numerically stable form
// max(x,0) - x*t + log(1 + e^-|x|). The local gradient is sigmoid(x) - t.
func BCEWithLogits(logit *Value, target float64) *Value {
	x := logit.Data
	loss := math.Max(x, 0) - x*target + math.Log1p(math.Exp(-math.Abs(x)))
	return &Value{Data: loss, children: []*Value{logit}, localGrads: []float64{sigmoid(x) - target}}
}

// Backward runs reverse-mode differentiation from out, zeroing gradients of
// all reachable nodes first and setting out.Grad = 1.
func Backward(out *Value) {
	topo := make([]*Value, 0)
	visited := make(map[*Value]bool)
	var build func(*Value)
	build = func(v *Value) {
		if !visited[v] {
			visited[v] = true
			for _, c := range v.children {
				build(c)
			}
			topo = append(topo, v)
		}
	}
	build(out)

	for _, v := range topo {
		v.Grad = 0
	}
	out.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		v := topo[i]
		for j, c := range v.children {
			c.Grad += v.localGrads[j] * v.Grad
		}
	}
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
