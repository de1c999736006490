package inventory

import "context"

// MovementEvent is published after a transaction that moved stock has committed.
type MovementEvent struct {
	Source  string
	Entries []LedgerEntry
}

// MovementHandler receives committed stock movements (metrics, cache invalidation).
type MovementHandler interface {
	HandleStockMoved(ctx context.Context, evt MovementEvent)
}

// MovementHandlers fans one event out to several handlers.
type MovementHandlers []MovementHandler

// HandleStockMoved implements MovementHandler.
func (hs MovementHandlers) HandleStockMoved(ctx context.Context, evt MovementEvent) {
	if len(evt.Entries) == 0 {
		return
	}
	for _, h := range hs {
		if h != nil {
			h.HandleStockMoved(ctx, evt)
		}
	}
}
