/*
store.go - Persistence interface for closed budgets

PURPOSE:
  The engine keeps its history in memory and in save files. An Archive is an
  optional, queryable copy of every closed year, fed by ArchivingSink when
  the engine fires its budget-closed event.

IMPLEMENTATIONS:
  - budget/store/memory.go: in-memory, for tests and ephemeral runs
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - projection.go: Update fires the event outside the engine lock
*/
package budget

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Archive stores closed budgets, one per year. Saving a year again replaces
// the earlier record.
type Archive interface {
	SaveBudget(ctx context.Context, b Budget) error

	// Budget returns ErrBudgetNotFound when the year was never archived.
	Budget(ctx context.Context, year int) (Budget, error)

	// Budgets returns every archived budget, oldest year first.
	Budgets(ctx context.Context) ([]Budget, error)
}

// ArchivingSink is an EventSink that writes closed budgets to an Archive and
// then forwards the event to Next, if set.
type ArchivingSink struct {
	Archive Archive
	Next    EventSink
	Log     logrus.FieldLogger
	Timeout time.Duration
}

func (s *ArchivingSink) BudgetClosed(closed Budget) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Archive.SaveBudget(ctx, closed); err != nil {
		log := s.Log
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.WithError(err).WithField("year", closed.Year).Error("Failed to archive closed budget")
	}
	if s.Next != nil {
		s.Next.BudgetClosed(closed)
	}
}
