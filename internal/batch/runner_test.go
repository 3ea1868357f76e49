package batch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
)

type funcProcessor func(activity.RawSeries) activity.Result

func (f funcProcessor) Process(s activity.RawSeries) activity.Result {
	return f(s)
}

func subjects(n int) []activity.RawSeries {
	series := make([]activity.RawSeries, n)
	for i := range series {
		counts := make([]int, activity.DefaultDayLength)
		for j := range counts {
			counts[j] = (i*37 + j) % 900
		}
		// reverse order so sorting is observable
		series[i] = activity.NewRawSeries(fmt.Sprintf("S%03d", n-i), activity.Sunday, counts)
	}
	return series
}

func TestRunMatchesSequential(t *testing.T) {
	p, err := activity.NewProcessor(activity.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	series := subjects(25)

	results, err := NewRunner(p, 4, nil).Run(context.Background(), series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(series) {
		t.Fatalf("expected %d results, got %d", len(series), len(results))
	}

	for i, res := range results {
		want := fmt.Sprintf("S%03d", i+1)
		if res.SubjectID != want {
			t.Errorf("result %d is %s, expected %s", i, res.SubjectID, want)
		}
	}

	expected := p.Process(series[0])
	got := results[len(results)-1]
	if !reflect.DeepEqual(expected, got) {
		t.Errorf("concurrent result differs from sequential processing")
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	proc := funcProcessor(func(s activity.RawSeries) activity.Result {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return activity.Result{SubjectID: s.SubjectID, Status: activity.StatusAccepted}
	})

	if _, err := NewRunner(proc, 3, nil).Run(context.Background(), subjects(20)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak > 3 {
		t.Errorf("expected at most 3 concurrent subjects, saw %d", peak)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	proc := funcProcessor(func(s activity.RawSeries) activity.Result {
		if s.SubjectID == "S002" {
			panic("index out of range")
		}
		return activity.Result{SubjectID: s.SubjectID, Status: activity.StatusAccepted}
	})

	results, err := NewRunner(proc, 2, nil).Run(context.Background(), subjects(3))
	if err != nil {
		t.Fatalf("a panicking subject must not fail the batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].Status != activity.StatusRejected || results[1].Reason == "" {
		t.Errorf("expected S002 to be rejected, got %+v", results[1])
	}
	if results[0].Status != activity.StatusAccepted || results[2].Status != activity.StatusAccepted {
		t.Errorf("other subjects should be unaffected")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	proc := funcProcessor(func(s activity.RawSeries) activity.Result {
		once.Do(cancel)
		return activity.Result{SubjectID: s.SubjectID, Status: activity.StatusAccepted}
	})

	_, err := NewRunner(proc, 1, nil).Run(ctx, subjects(50))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewRunnerDefaultsWorkers(t *testing.T) {
	if w := NewRunner(nil, 0, nil).Workers(); w < 1 {
		t.Errorf("expected at least one worker, got %d", w)
	}
}
