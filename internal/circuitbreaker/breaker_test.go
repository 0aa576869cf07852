package circuitbreaker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/circuitbreaker"
	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/upstream"
)

func transportFailure() error {
	return &upstream.TransportError{Service: "svc-A", Err: errors.New("connection refused")}
}

func failOnce(cb *circuitbreaker.CircuitBreaker) error {
	return cb.Execute(func() error { return transportFailure() })
}

func succeedOnce(cb *circuitbreaker.CircuitBreaker) error {
	return cb.Execute(func() error { return nil })
}

var _ = Describe("CircuitBreaker", func() {
	var cb *circuitbreaker.CircuitBreaker

	Describe("New", func() {
		It("should create a circuit breaker in closed state", func() {
			cb = circuitbreaker.New("svc-A", 5, 30*time.Second, upstream.IsTransient, nil)
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Failures()).To(Equal(0))
		})
	})

	Describe("State transitions", func() {
		BeforeEach(func() {
			cb = circuitbreaker.New("svc-A", 3, 100*time.Millisecond, upstream.IsTransient, nil)
		})

		Context("when in CLOSED state", func() {
			It("should run the operation and return its result", func() {
				Expect(succeedOnce(cb)).To(Succeed())
			})

			It("should remain closed after failures below threshold", func() {
				failOnce(cb)
				failOnce(cb)
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.Failures()).To(Equal(2))
			})

			It("should transition to OPEN after reaching failure threshold", func() {
				failOnce(cb)
				failOnce(cb)
				failOnce(cb)
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should reset the consecutive failure count on success", func() {
				failOnce(cb)
				failOnce(cb)
				succeedOnce(cb)
				failOnce(cb)
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.Failures()).To(Equal(1))
			})

			It("should not count completed responses or cancellations as failures", func() {
				cb.Execute(func() error { return context.Canceled })
				cb.Execute(func() error { return context.Canceled })
				cb.Execute(func() error { return context.Canceled })
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.Failures()).To(Equal(0))
			})
		})

		Context("when in OPEN state", func() {
			BeforeEach(func() {
				// Trip the circuit
				failOnce(cb)
				failOnce(cb)
				failOnce(cb)
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should fail fast without running the operation", func() {
				invoked := false
				err := cb.Execute(func() error {
					invoked = true
					return nil
				})
				Expect(err).To(MatchError(circuitbreaker.ErrCircuitOpen))
				Expect(invoked).To(BeFalse())
			})

			It("should report a positive cooldown", func() {
				Expect(cb.Cooldown()).To(BeNumerically(">", 0))
			})

			It("should remain OPEN before the reset timeout expires", func() {
				time.Sleep(50 * time.Millisecond)
				Expect(failOnce(cb)).To(MatchError(circuitbreaker.ErrCircuitOpen))
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should admit a probe after the reset timeout", func() {
				time.Sleep(150 * time.Millisecond)
				Expect(succeedOnce(cb)).To(Succeed())
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			})
		})

		Context("when in HALF_OPEN state", func() {
			BeforeEach(func() {
				// Trip the circuit, then wait out the cooldown
				failOnce(cb)
				failOnce(cb)
				failOnce(cb)
				time.Sleep(150 * time.Millisecond)
			})

			It("should transition to CLOSED on probe success with failures reset", func() {
				Expect(succeedOnce(cb)).To(Succeed())
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.Failures()).To(Equal(0))
			})

			It("should transition back to OPEN on probe failure", func() {
				failOnce(cb)
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should reject concurrent callers while the probe is in flight", func() {
				probeStarted := make(chan struct{})
				release := make(chan struct{})

				go func() {
					defer GinkgoRecover()
					cb.Execute(func() error {
						close(probeStarted)
						<-release
						return nil
					})
				}()

				<-probeStarted
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))

				invoked := false
				err := cb.Execute(func() error {
					invoked = true
					return nil
				})
				Expect(err).To(MatchError(circuitbreaker.ErrCircuitOpen))
				Expect(invoked).To(BeFalse())

				close(release)
				Eventually(cb.State).Should(Equal(circuitbreaker.StateClosed))
			})

			It("should admit exactly one probe among concurrent callers", func() {
				var admitted atomic.Int32
				release := make(chan struct{})
				var wg sync.WaitGroup

				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						defer GinkgoRecover()
						cb.Execute(func() error {
							admitted.Add(1)
							<-release
							return nil
						})
					}()
				}

				Eventually(func() int32 { return admitted.Load() }).Should(Equal(int32(1)))
				Consistently(func() int32 { return admitted.Load() }).Should(Equal(int32(1)))

				close(release)
				wg.Wait()
			})

			It("should re-arm the probe slot after a cancelled probe", func() {
				cb.Execute(func() error { return context.Canceled })
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))

				Expect(succeedOnce(cb)).To(Succeed())
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			})
		})
	})

	Describe("State change notifications", func() {
		It("should report every transition", func() {
			type change struct{ from, to circuitbreaker.State }
			var mu sync.Mutex
			var changes []change

			cb = circuitbreaker.New("svc-A", 2, 50*time.Millisecond, upstream.IsTransient,
				func(service string, from, to circuitbreaker.State) {
					Expect(service).To(Equal("svc-A"))
					mu.Lock()
					changes = append(changes, change{from, to})
					mu.Unlock()
				})

			failOnce(cb)
			failOnce(cb) // CLOSED -> OPEN
			time.Sleep(80 * time.Millisecond)
			succeedOnce(cb) // OPEN -> HALF_OPEN -> CLOSED

			mu.Lock()
			defer mu.Unlock()
			Expect(changes).To(Equal([]change{
				{circuitbreaker.StateClosed, circuitbreaker.StateOpen},
				{circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen},
				{circuitbreaker.StateHalfOpen, circuitbreaker.StateClosed},
			}))
		})
	})

	Describe("Scenario: threshold=3, reset_timeout=100ms", func() {
		It("should open, fail fast, then recover on a successful probe", func() {
			cb = circuitbreaker.New("svc-A", 3, 100*time.Millisecond, upstream.IsTransient, nil)

			for i := 0; i < 3; i++ {
				Expect(failOnce(cb)).To(HaveOccurred())
			}
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			contacted := false
			err := cb.Execute(func() error {
				contacted = true
				return nil
			})
			Expect(err).To(MatchError(circuitbreaker.ErrCircuitOpen))
			Expect(contacted).To(BeFalse())

			time.Sleep(120 * time.Millisecond)
			Expect(succeedOnce(cb)).To(Succeed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Failures()).To(Equal(0))
		})
	})

	Describe("String", func() {
		It("should name all states", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("CLOSED"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("OPEN"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("HALF_OPEN"))
		})
	})
})
