package behave_test

import (
	"sync"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/toejough/behave"
	"pgregory.net/rapid"
)

// TestMocks_SameT_CollectsInCreationOrder verifies that mocks created under
// the same *testing.T are listed together.
func TestMocks_SameT_CollectsInCreationOrder(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	first := behave.NewMockState(t, "First")
	second := behave.NewMockState(t, "Second")

	g.Expect(behave.Mocks(t)).To(Equal([]*behave.MockState{first, second}))
}

// TestMocks_DifferentT_AreSeparate verifies that different *testing.T values
// do not see each other's mocks.
func TestMocks_DifferentT_AreSeparate(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var inFirst, inSecond []*behave.MockState

	t.Run("subtest1", func(t *testing.T) {
		behave.NewMockState(t, "A")
		inFirst = behave.Mocks(t)
	})

	t.Run("subtest2", func(t *testing.T) {
		behave.NewMockState(t, "B")
		inSecond = behave.Mocks(t)
	})

	g.Expect(inFirst).To(HaveLen(1))
	g.Expect(inSecond).To(HaveLen(1))
	g.Expect(inFirst[0]).NotTo(BeIdenticalTo(inSecond[0]))
}

// TestMocks_ConcurrentCreation_Rapid uses property-based testing to verify
// that concurrent mock creation under one test registers every mock.
func TestMocks_ConcurrentCreation_Rapid(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		numGoroutines := rapid.IntRange(2, 50).Draw(rt, "numGoroutines")
		reporter := &quietReporter{}

		var wg sync.WaitGroup
		wg.Add(numGoroutines)

		for range numGoroutines {
			go func() {
				defer wg.Done()
				behave.NewMockState(reporter, "Concurrent")
			}()
		}

		wg.Wait()

		if got := len(behave.Mocks(reporter)); got != numGoroutines {
			rt.Fatalf("expected %d mocks, got %d", numGoroutines, got)
		}
	})
}

// TestVerifyAll_SatisfiedMocksPass verifies that VerifyAll is silent when
// nothing is expected.
func TestVerifyAll_SatisfiedMocksPass(t *testing.T) {
	t.Parallel()

	behave.NewMockState(t, "Quiet")
	behave.VerifyAll(t)
}

// quietReporter has no Cleanup, so registrations persist for inspection.
// It is not zero-sized so that each instance is a distinct registry key.
type quietReporter struct {
	fatals int
}

func (q *quietReporter) Fatalf(string, ...any) {
	q.fatals++
}

func (*quietReporter) Helper() {}
