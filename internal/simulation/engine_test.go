package simulation

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"flowcast-mcp/internal/cycletime"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedOf(v int64) *int64 { return &v }

func testDistribution() *cycletime.Distribution {
	return &cycletime.Distribution{
		Cohort:  "team",
		Samples: []float64{1.5, 2, 3, 4.5, 5, 6, 8, 13},
	}
}

func TestForecastDeterministicForSeed(t *testing.T) {
	opts := Options{Iterations: 500, Workers: 4, Seed: seedOf(42), Now: testNow}

	a, err := NewEngine(opts).Forecast(testDistribution(), 20)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := NewEngine(opts).Forecast(testDistribution(), 20)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed produced different results:\n%+v\n%+v", a, b)
	}
}

func TestForecastIndependentOfWorkerCount(t *testing.T) {
	for _, workers := range []int{1, 2, 7, 32} {
		got, err := NewEngine(Options{
			Iterations: 500,
			Workers:    workers,
			Seed:       seedOf(99),
			Now:        testNow,
		}).Forecast(testDistribution(), 15)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}

		want, err := NewEngine(Options{
			Iterations: 500,
			Workers:    1,
			Seed:       seedOf(99),
			Now:        testNow,
		}).Forecast(testDistribution(), 15)
		if err != nil {
			t.Fatalf("workers=1: %v", err)
		}

		if !reflect.DeepEqual(got.ElapsedDays, want.ElapsedDays) {
			t.Errorf("workers=%d changed the outcome: got %v, want %v", workers, got.ElapsedDays, want.ElapsedDays)
		}
	}
}

func TestForecastPercentilesAreOrdered(t *testing.T) {
	res, err := NewEngine(Options{Iterations: 1000, Seed: seedOf(7), Now: testNow}).
		Forecast(testDistribution(), 25)
	if err != nil {
		t.Fatal(err)
	}

	if res.ElapsedDays[50] > res.ElapsedDays[85] || res.ElapsedDays[85] > res.ElapsedDays[95] {
		t.Errorf("percentiles out of order: %v", res.ElapsedDays)
	}
	if res.Dates[50].After(res.Dates[85]) || res.Dates[85].After(res.Dates[95]) {
		t.Errorf("dates out of order: %v", res.Dates)
	}
}

func TestForecastConstantSamples(t *testing.T) {
	dist := &cycletime.Distribution{Cohort: "team", Samples: []float64{1, 1, 1, 1, 1}}

	res, err := NewEngine(Options{Iterations: 200, Seed: seedOf(1), Now: testNow}).
		Forecast(dist, 10)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range Percentiles {
		if res.ElapsedDays[p] != 10 {
			t.Errorf("P%d = %v days, want exactly 10", p, res.ElapsedDays[p])
		}
		want := testNow.Add(10 * 24 * time.Hour)
		if !res.Dates[p].Equal(want) {
			t.Errorf("P%d date = %v, want %v", p, res.Dates[p], want)
		}
	}
}

func TestForecastZeroRemaining(t *testing.T) {
	res, err := NewEngine(Options{Iterations: 200, Seed: seedOf(1), Now: testNow}).
		Forecast(testDistribution(), 0)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range Percentiles {
		if res.ElapsedDays[p] != 0 {
			t.Errorf("P%d = %v days, want 0", p, res.ElapsedDays[p])
		}
		if !res.Dates[p].Equal(testNow) {
			t.Errorf("P%d date = %v, want now (%v)", p, res.Dates[p], testNow)
		}
	}
	if res.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0 when nothing was simulated", res.Iterations)
	}
}

func TestForecastInsufficientData(t *testing.T) {
	engine := NewEngine(Options{Iterations: 200, Seed: seedOf(1), Now: testNow})

	if _, err := engine.Forecast(nil, 5); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("nil distribution: err = %v, want ErrInsufficientData", err)
	}

	empty := &cycletime.Distribution{Cohort: "team"}
	if _, err := engine.Forecast(empty, 5); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("empty distribution: err = %v, want ErrInsufficientData", err)
	}

	// Even with nothing left to do, an empty distribution is an error.
	if _, err := engine.Forecast(empty, 0); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("empty distribution with zero remaining: err = %v, want ErrInsufficientData", err)
	}
}

func TestForecastRecordsRunMetadata(t *testing.T) {
	dist := testDistribution()
	dist.LowConfidence = true

	res, err := NewEngine(Options{Iterations: 300, Seed: seedOf(1234), Now: testNow}).
		Forecast(dist, 5)
	if err != nil {
		t.Fatal(err)
	}

	if res.Seed != 1234 {
		t.Errorf("Seed = %d, want 1234", res.Seed)
	}
	if res.Iterations != 300 {
		t.Errorf("Iterations = %d, want 300", res.Iterations)
	}
	if res.SampleCount != dist.Len() {
		t.Errorf("SampleCount = %d, want %d", res.SampleCount, dist.Len())
	}
	if !res.LowConfidence {
		t.Error("LowConfidence was not carried over from the distribution")
	}
	if !res.GeneratedAt.Equal(testNow) {
		t.Errorf("GeneratedAt = %v, want %v", res.GeneratedAt, testNow)
	}
	if res.Remaining != 5 {
		t.Errorf("Remaining = %d, want 5", res.Remaining)
	}
}

func TestEngineDerivesSeedWhenUnset(t *testing.T) {
	a := NewEngine(Options{Iterations: 10, Now: testNow})
	res, err := a.Forecast(testDistribution(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Seed != a.Seed() {
		t.Errorf("result seed %d does not match engine seed %d", res.Seed, a.Seed())
	}
}
