package main

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/lumen-ml/lumen"
)

// check is one verification case: a lazily built scalar expression and the
// host-side value it must match.
type check struct {
	name string
	node func() (*lumen.Node, error)
	want float64
}

// printMu serializes per-device result blocks when verification fans out.
var printMu sync.Mutex

// VerifyHandler runs the reduction suite on every device concurrently and
// exits non-zero when any check misses the tolerance.
func VerifyHandler(cmd *cobra.Command, args []string) error {
	n, err := cmd.Flags().GetInt("size")
	if err != nil {
		return err
	}
	seed, err := cmd.Flags().GetInt64("seed")
	if err != nil {
		return err
	}

	ctx, err := lumen.NewContext()
	if err != nil {
		return err
	}
	defer ctx.Release()

	// The error propagates through main for the non-zero exit so the
	// deferred context release still runs.
	g := new(errgroup.Group)
	for _, dev := range ctx.Devices() {
		g.Go(func() error {
			return verifyDevice(dev, n, seed)
		})
	}
	return g.Wait()
}

func verifyDevice(dev *lumen.Device, n int, seed int64) error {
	eng := lumen.NewEngine(dev)
	info := dev.Info()

	rng := rand.New(rand.NewSource(seed))
	xh := make([]float32, n)
	yh := make([]float32, n)
	for i := range xh {
		xh[i] = rng.Float32() - 0.5
		yh[i] = rng.Float32() - 0.5
	}

	x, err := eng.FromFloat32(xh)
	if err != nil {
		return err
	}
	defer x.Release()
	y, err := eng.FromFloat32(yh)
	if err != nil {
		return err
	}
	defer y.Release()

	var failures int
	var report []string
	report = append(report, fmt.Sprintf("device: %s (%s)", info.Name, info.Vendor))

	run := func(section string, xv, yv lumen.View, xs, ys []float32) error {
		checks, err := buildChecks(xv, yv, xs, ys)
		if err != nil {
			return err
		}
		report = append(report, "  "+section)
		for _, c := range checks {
			node, err := c.node()
			if err != nil {
				failures++
				report = append(report, fmt.Sprintf("    FAIL %-12s build: %v", c.name, err))
				continue
			}
			s, err := eng.Defer(node)
			if err != nil {
				failures++
				report = append(report, fmt.Sprintf("    FAIL %-12s defer: %v", c.name, err))
				continue
			}
			got, err := s.Force()
			if err != nil {
				failures++
				report = append(report, fmt.Sprintf("    FAIL %-12s run: %v", c.name, err))
				continue
			}
			if rel := relError(got, c.want); rel > lumen.Float32.Epsilon() {
				failures++
				report = append(report, fmt.Sprintf("    FAIL %-12s got %v want %v (rel %.3g)", c.name, got, c.want, rel))
			} else {
				report = append(report, fmt.Sprintf("    PASS %-12s %v", c.name, got))
			}
		}
		return nil
	}

	if err := run("full views", x.View(), y.View(), xh, yh); err != nil {
		return err
	}

	const sliceStart, sliceStep = 5, 4
	xv, err := slicedView(x, n, sliceStart, sliceStep)
	if err != nil {
		return err
	}
	yv, err := slicedView(y, n, sliceStart, sliceStep)
	if err != nil {
		return err
	}
	if err := run("strided views", xv, yv, gather(xh, sliceStart, sliceStep), gather(yh, sliceStart, sliceStep)); err != nil {
		return err
	}

	if !info.SupportsFloat64 {
		report = append(report, "  float64: skipped (device does not support it)")
	}

	printMu.Lock()
	for _, line := range report {
		fmt.Println(line)
	}
	printMu.Unlock()

	if failures > 0 {
		return fmt.Errorf("%s: %d checks failed", info.Name, failures)
	}
	return nil
}

// buildChecks mirrors the original suite: dot, asum, exp(dot), 1+dot,
// dot+dot(y,y), max and min, each against a left-to-right host accumulation.
// The dot oracle is cross-checked against BLAS before use; disagreement
// means the expected values themselves are untrustworthy, so it is an error
// rather than a failed check.
func buildChecks(xv, yv lumen.View, xs, ys []float32) ([]check, error) {
	dotWant := float64(hostDot(xs, ys))
	if b := float64(blasDot(xs, ys)); relError(dotWant, b) > 1e-3 {
		return nil, fmt.Errorf("host oracle disagrees with BLAS: %v vs %v", dotWant, b)
	}

	xn := func() *lumen.Node { return lumen.ViewOf(xv) }
	yn := func() *lumen.Node { return lumen.ViewOf(yv) }

	return []check{
		{"x'y", func() (*lumen.Node, error) { return lumen.Dot(xn(), yn()) }, dotWant},
		{"asum(x)", func() (*lumen.Node, error) { return lumen.Asum(xn()) }, float64(hostAsum(xs))},
		{"exp(x'y)", func() (*lumen.Node, error) {
			d, err := lumen.Dot(xn(), yn())
			if err != nil {
				return nil, err
			}
			return lumen.Exp(d)
		}, float64(float32(math.Exp(dotWant)))},
		{"1+x'y", func() (*lumen.Node, error) {
			d, err := lumen.Dot(xn(), yn())
			if err != nil {
				return nil, err
			}
			return lumen.Add(lumen.Const(1), d)
		}, 1 + dotWant},
		{"x'y+y'y", func() (*lumen.Node, error) {
			d, err := lumen.Dot(xn(), yn())
			if err != nil {
				return nil, err
			}
			d2, err := lumen.Dot(yn(), yn())
			if err != nil {
				return nil, err
			}
			return lumen.Add(d, d2)
		}, dotWant + float64(hostDot(ys, ys))},
		{"max(x)", func() (*lumen.Node, error) { return lumen.Max(xn()) }, float64(hostMax(xs))},
		{"min(x)", func() (*lumen.Node, error) { return lumen.Min(xn()) }, float64(hostMin(xs))},
	}, nil
}

func slicedView(a *lumen.Array, n, start, step int) (lumen.View, error) {
	v, err := a.View().Slice(0, start, n-start)
	if err != nil {
		return lumen.View{}, err
	}
	return v.Stride(0, step)
}

// gather extracts the logical elements of a strided window for the host
// oracle.
func gather(data []float32, start, step int) []float32 {
	var out []float32
	for i := start; i < len(data); i += step {
		out = append(out, data[i])
	}
	return out
}

// Host oracles accumulate left to right in float32, matching the precision
// model the tolerance is calibrated for.

func hostDot(x, y []float32) float32 {
	var acc float32
	for i := range x {
		acc += x[i] * y[i]
	}
	return acc
}

func hostAsum(x []float32) float32 {
	var acc float32
	for _, v := range x {
		acc += float32(math.Abs(float64(v)))
	}
	return acc
}

func hostMax(x []float32) float32 {
	acc := float32(math.Inf(-1))
	for _, v := range x {
		if v > acc {
			acc = v
		}
	}
	return acc
}

func hostMin(x []float32) float32 {
	acc := float32(math.Inf(1))
	for _, v := range x {
		if v < acc {
			acc = v
		}
	}
	return acc
}

func blasDot(x, y []float32) float32 {
	return blas32.Dot(
		blas32.Vector{N: len(x), Inc: 1, Data: x},
		blas32.Vector{N: len(y), Inc: 1, Data: y},
	)
}

// relError is the original suite's acceptance metric.
func relError(got, want float64) float64 {
	d := math.Abs(got - want)
	m := math.Max(math.Abs(got), math.Abs(want))
	if m == 0 {
		return d
	}
	return d / m
}
