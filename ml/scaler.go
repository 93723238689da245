package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	scalerStandard = "standard"
	scalerMinMax   = "minmax"
)

// Scaler is a per-column affine transform. Fit never mutates the receiver;
// it returns a fitted copy so a failed training run leaves the model untouched.
type Scaler interface {
	Fit(X [][]float64) (Scaler, error)
	Transform(X [][]float64) ([][]float64, error)
	InverseTransform(X [][]float64) ([][]float64, error)
	Fitted() bool
	State() ScalerState
}

// ScalerState is the persisted form of a scaler.
type ScalerState struct {
	Kind   string    `json:"kind"`
	Center []float64 `json:"center,omitempty"`
	Scale  []float64 `json:"scale,omitempty"`
}

// affine maps x to (x-center)/scale column by column.
type affine struct {
	kind   string
	center []float64
	scale  []float64
}

func (a *affine) Fitted() bool { return a.center != nil }

func (a *affine) State() ScalerState {
	return ScalerState{
		Kind:   a.kind,
		Center: append([]float64(nil), a.center...),
		Scale:  append([]float64(nil), a.scale...),
	}
}

func (a *affine) Transform(X [][]float64) ([][]float64, error) {
	return a.apply(X, func(v, c, s float64) float64 { return (v - c) / s })
}

func (a *affine) InverseTransform(X [][]float64) ([][]float64, error) {
	return a.apply(X, func(v, c, s float64) float64 { return v*s + c })
}

func (a *affine) apply(X [][]float64, fn func(v, c, s float64) float64) ([][]float64, error) {
	if !a.Fitted() {
		return nil, fmt.Errorf("%s scaler: %w", a.kind, ErrNotFitted)
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(a.center) {
			return nil, fmt.Errorf("%s scaler: row %d has %d columns, want %d: %w",
				a.kind, i, len(row), len(a.center), ErrFeatureMismatch)
		}
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = fn(v, a.center[j], a.scale[j])
		}
		out[i] = r
	}
	return out, nil
}

// StandardScaler centres on the mean and divides by the population standard deviation.
type StandardScaler struct{ affine }

func NewStandardScaler() *StandardScaler {
	return &StandardScaler{affine{kind: scalerStandard}}
}

func (s *StandardScaler) Fit(X [][]float64) (Scaler, error) {
	cols, err := columns(X)
	if err != nil {
		return nil, err
	}
	fitted := NewStandardScaler()
	fitted.center = make([]float64, len(cols))
	fitted.scale = make([]float64, len(cols))
	for j, c := range cols {
		fitted.center[j] = stat.Mean(c, nil)
		fitted.scale[j] = nonZero(math.Sqrt(stat.PopVariance(c, nil)))
	}
	return fitted, nil
}

// MinMaxScaler maps each column onto [0, 1].
type MinMaxScaler struct{ affine }

func NewMinMaxScaler() *MinMaxScaler {
	return &MinMaxScaler{affine{kind: scalerMinMax}}
}

func (s *MinMaxScaler) Fit(X [][]float64) (Scaler, error) {
	cols, err := columns(X)
	if err != nil {
		return nil, err
	}
	fitted := NewMinMaxScaler()
	fitted.center = make([]float64, len(cols))
	fitted.scale = make([]float64, len(cols))
	for j, c := range cols {
		lo, hi := floats.Min(c), floats.Max(c)
		fitted.center[j] = lo
		fitted.scale[j] = nonZero(hi - lo)
	}
	return fitted, nil
}

func scalerFromState(st *ScalerState) (Scaler, error) {
	if st == nil {
		return nil, nil
	}
	if len(st.Center) != len(st.Scale) {
		return nil, fmt.Errorf("scaler state %s: center/scale length mismatch", st.Kind)
	}
	var a affine
	switch st.Kind {
	case scalerStandard:
		a = affine{kind: scalerStandard}
	case scalerMinMax:
		a = affine{kind: scalerMinMax}
	default:
		return nil, fmt.Errorf("unknown scaler kind %q", st.Kind)
	}
	if st.Center != nil {
		a.center = append([]float64(nil), st.Center...)
		a.scale = append([]float64(nil), st.Scale...)
	}
	if a.kind == scalerStandard {
		return &StandardScaler{a}, nil
	}
	return &MinMaxScaler{a}, nil
}

// nonZero replaces a zero spread with 1 so constant columns pass through centred.
func nonZero(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 1
	}
	return v
}

// columns transposes X, rejecting empty or ragged input.
func columns(X [][]float64) ([][]float64, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, fmt.Errorf("fit on empty matrix: %w", ErrInsufficientData)
	}
	width := len(X[0])
	cols := make([][]float64, width)
	for j := range cols {
		cols[j] = make([]float64, len(X))
	}
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(row), width, ErrFeatureMismatch)
		}
		for j, v := range row {
			cols[j][i] = v
		}
	}
	return cols, nil
}

func column(y []float64) [][]float64 {
	out := make([][]float64, len(y))
	for i, v := range y {
		out[i] = []float64{v}
	}
	return out
}

func flatten(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = row[0]
	}
	return out
}
