package engine

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/odesweep/internal/layout"
	"github.com/san-kum/odesweep/internal/solver"
)

var _ = Describe("Engine", func() {
	var (
		eng   *Engine
		batch Batch
	)

	BeforeEach(func() {
		eng = newTestEngine(solver.NewRosenbrock())
		batch = conversionBatch(10)
	})

	Context("with a valid batch", func() {
		It("flags every sample exactly once", func() {
			res, err := eng.Run(context.Background(), batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(HaveLen(10))
			Expect(res.Failed()).To(BeEmpty())
			Expect(res.Attempts).To(HaveEach(1))
		})

		It("records the initial condition at t = 0", func() {
			res, err := eng.Run(context.Background(), batch)
			Expect(err).NotTo(HaveOccurred())
			for k := 0; k < res.Samples; k++ {
				Expect(res.Trajectory(k)[0]).To(Equal(batch.Initial.Row(k)))
			}
		})

		It("conserves total mass without noise", func() {
			res, err := eng.Run(context.Background(), batch)
			Expect(err).NotTo(HaveOccurred())
			for k := 0; k < res.Samples; k++ {
				total := batch.Initial.At(k, 0) + batch.Initial.At(k, 1)
				s := res.SteadyState(k)
				Expect(s[0] + s[1]).To(BeNumerically("~", total, 1e-6))
			}
		})
	})

	Context("with a degenerate input", func() {
		It("rejects a two-point grid before doing any work", func() {
			batch.Times = []float64{0, 1}
			res, err := eng.Run(context.Background(), batch)
			Expect(err).To(MatchError(ErrConfiguration))
			Expect(res).To(BeNil())
		})

		It("accepts an empty batch", func() {
			batch.Initial = layout.NewMatrix(0, 2, layout.RowMajor)
			batch.Rates = layout.NewMatrix(0, 1, layout.RowMajor)
			res, err := eng.Run(context.Background(), batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Samples).To(BeZero())
			Expect(res.Status).To(BeEmpty())
		})
	})

	Context("when one sample cannot be integrated", func() {
		It("keeps the other samples intact", func() {
			binding := &scriptedBinding{
				inner: solver.NewRosenbrock(),
				failAt: func(p []float64, _ int, _ float64) solver.Flag {
					if math.IsInf(p[0], 1) {
						return solver.RHSFailure
					}
					return solver.Success
				},
			}
			batch.Rates.Set(4, 0, math.Inf(1))
			batch.Solver.MaxRetries = 2

			res, err := newTestEngine(binding).Run(context.Background(), batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed()).To(Equal([]int{4}))
			Expect(res.Status[4]).To(Equal(solver.RHSFailure))
			Expect(res.Attempts[4]).To(Equal(2))
			Expect(res.Err(4)).To(MatchError(solver.ErrIntegration))
			Expect(res.Err(3)).NotTo(HaveOccurred())
			Expect(res.SteadyState(4)).To(Equal(batch.Initial.Row(4)))
		})
	})
})
