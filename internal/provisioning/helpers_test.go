package provisioning

import (
	"context"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"

	"github.com/imamik/vcdflow/internal/config"
	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
	"github.com/imamik/vcdflow/internal/platform/sim"
	cptest "github.com/imamik/vcdflow/internal/testing"
)

// memJournal keeps the latest record of every run.
type memJournal struct {
	mu    sync.Mutex
	runs  map[string]Run
	order []string
}

func (j *memJournal) Record(_ context.Context, run Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runs == nil {
		j.runs = make(map[string]Run)
	}
	if _, ok := j.runs[run.ID]; !ok {
		j.order = append(j.order, run.ID)
	}
	j.runs[run.ID] = run
	return nil
}

func (j *memJournal) last() Run {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.order) == 0 {
		return Run{}
	}
	return j.runs[j.order[len(j.order)-1]]
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) count(t EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestOrchestrator(t *testing.T, dialer controlplane.Dialer, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{
		WithTimeouts(cptest.FastTimeouts()),
		WithLogger(testr.New(t)),
	}
	return New(dialer, append(base, opts...)...)
}

func fastTimeouts(mutate func(*config.Timeouts)) *config.Timeouts {
	t := cptest.FastTimeouts()
	mutate(t)
	return t
}

// submittedKinds returns the kinds of accepted submissions in order.
func submittedKinds(subs []sim.Submission) []controlplane.OperationKind {
	var kinds []controlplane.OperationKind
	for _, s := range subs {
		if !s.Rejected {
			kinds = append(kinds, s.Kind)
		}
	}
	return kinds
}

func idOf(t *testing.T, s *sim.Sim, href string) string {
	t.Helper()
	id, err := locator.ToID(s.Endpoint(), href)
	if err != nil {
		t.Fatalf("ToID(%s): %v", href, err)
	}
	return id
}
