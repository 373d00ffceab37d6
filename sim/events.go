package sim

import (
	"sync"

	"github.com/warp/treasury-engine/budget"
)

// EventLog records every closed budget it is notified of.
type EventLog struct {
	mu     sync.Mutex
	closed []budget.Budget
}

var _ budget.EventSink = (*EventLog)(nil)

func (l *EventLog) BudgetClosed(closed budget.Budget) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, closed)
}

// Closed returns a copy of the recorded budgets, oldest first.
func (l *EventLog) Closed() []budget.Budget {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]budget.Budget(nil), l.closed...)
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.closed)
}

// Fanout notifies each sink in order.
type Fanout []budget.EventSink

func (f Fanout) BudgetClosed(closed budget.Budget) {
	for _, s := range f {
		if s != nil {
			s.BudgetClosed(closed)
		}
	}
}
