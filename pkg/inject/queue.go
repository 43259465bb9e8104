package inject

import (
	"context"
	"sync"
)

// ScriptOutcome is the settled result of one queued tabs call.
type ScriptOutcome struct {
	Results []any
	Err     error
}

// ScriptQueue is implemented by tabs hosts that accept script calls without
// blocking. SubmitScript has enqueued the call when it returns; calls for one
// tab run in the order they were submitted. The channel yields exactly one
// outcome.
type ScriptQueue interface {
	SubmitScript(ctx context.Context, tabID int, details InjectDetails) <-chan ScriptOutcome
}

type queuedScript struct {
	ctx     context.Context
	details InjectDetails
	out     chan ScriptOutcome
}

// tabQueue gives a blocking TabsAPI the ScriptQueue contract: one worker per
// busy tab runs its calls one at a time, and exits once the tab's queue is
// empty.
type tabQueue struct {
	host TabsAPI

	mu   sync.Mutex
	tabs map[int][]queuedScript
}

func newTabQueue(host TabsAPI) *tabQueue {
	return &tabQueue{host: host, tabs: make(map[int][]queuedScript)}
}

func (q *tabQueue) SubmitScript(ctx context.Context, tabID int, details InjectDetails) <-chan ScriptOutcome {
	out := make(chan ScriptOutcome, 1)

	q.mu.Lock()
	defer q.mu.Unlock()
	pending, busy := q.tabs[tabID]
	q.tabs[tabID] = append(pending, queuedScript{ctx: ctx, details: details, out: out})
	if !busy {
		go q.drain(tabID)
	}
	return out
}

func (q *tabQueue) drain(tabID int) {
	for {
		q.mu.Lock()
		pending := q.tabs[tabID]
		if len(pending) == 0 {
			delete(q.tabs, tabID)
			q.mu.Unlock()
			return
		}
		next := pending[0]
		q.tabs[tabID] = pending[1:]
		q.mu.Unlock()

		results, err := q.host.ExecuteScript(next.ctx, tabID, next.details)
		next.out <- ScriptOutcome{Results: results, Err: err}
	}
}
