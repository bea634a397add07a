// Package orchestrator implements the SyncOrchestrator from spec §4.6: a
// small state machine (idle/syncing/error) that runs push-then-pull on a
// ticker and on reconnect, guarding against overlapping cycles and fanning
// state changes out to subscribers the way internal/network.Monitor fans
// out reachability changes.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/syncengine/internal/config"
	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/pull"
	"github.com/erauner12/syncengine/internal/push"
	"github.com/erauner12/syncengine/internal/queue"
	"github.com/erauner12/syncengine/internal/syncerr"
	"github.com/erauner12/syncengine/internal/syncx"
)

// Orchestrator is the default SyncOrchestrator implementation.
type Orchestrator struct {
	store   engine.LocalStore
	push    *push.Pipeline
	pull    *pull.Pipeline
	queue   *queue.Queue
	network engine.NetworkReachability
	cfg     config.Config

	mu        sync.Mutex
	state     engine.EngineState
	listeners map[int]func(engine.EngineState)
	nextID    int

	unsubscribeNetwork func()
	cancel             context.CancelFunc
	done               chan struct{}
}

// New builds an Orchestrator in the idle state.
func New(store engine.LocalStore, pushPipeline *push.Pipeline, pullPipeline *pull.Pipeline, q *queue.Queue, network engine.NetworkReachability, cfg config.Config) *Orchestrator {
	return &Orchestrator{
		store:     store,
		push:      pushPipeline,
		pull:      pullPipeline,
		queue:     q,
		network:   network,
		cfg:       cfg,
		state:     engine.EngineState{Status: engine.EngineIdle},
		listeners: make(map[int]func(engine.EngineState)),
	}
}

// Start wires the background ticker and, if configured, the reconnect
// trigger, then returns. Call Shutdown to stop both.
func (o *Orchestrator) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})

	if o.cfg.SyncOnReconnect {
		o.unsubscribeNetwork = o.network.Subscribe(func(status engine.NetworkStatus) {
			if status.IsConnected {
				go func() {
					if err := o.Sync(loopCtx); err != nil && err != syncerr.ErrAlreadyInProgress {
						log.Warn().Err(err).Msg("reconnect-triggered sync failed")
					}
				}()
			}
		})
	}

	if o.cfg.EnableBackground {
		go o.backgroundLoop(loopCtx)
	} else {
		close(o.done)
	}
}

func (o *Orchestrator) backgroundLoop(ctx context.Context) {
	defer close(o.done)
	ticker := time.NewTicker(o.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.Sync(ctx); err != nil && err != syncerr.ErrAlreadyInProgress {
				log.Warn().Err(err).Msg("background sync failed")
			}
		}
	}
}

// Shutdown stops the background ticker and reconnect subscription.
func (o *Orchestrator) Shutdown() {
	if o.unsubscribeNetwork != nil {
		o.unsubscribeNetwork()
	}
	if o.cancel != nil {
		o.cancel()
		<-o.done
	}
}

// Sync runs one push-then-pull cycle. Guards are evaluated in spec §4.6
// order: the concurrency guard first (syncerr.ErrAlreadyInProgress if a cycle
// is already running), then the reachability guard (syncerr.ErrOffline if
// the network monitor reports offline).
func (o *Orchestrator) Sync(ctx context.Context) error {
	if !o.beginSync() {
		return syncerr.ErrAlreadyInProgress
	}
	defer o.endSync()

	if !o.network.IsOnline() {
		return syncerr.ErrOffline
	}

	pushResult, pushErr := o.push.Run(ctx)
	if pushErr != nil {
		o.setError(pushErr)
		return pushErr
	}

	pullResult, pullErr := o.pull.Run(ctx)
	if pullErr != nil {
		o.setError(pullErr)
		return pullErr
	}

	pending, err := o.queue.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to refresh pending count after sync")
	}

	now := syncx.NowMs()
	o.setState(engine.EngineState{
		Status:         engine.EngineIdle,
		LastSyncAt:     &now,
		PendingChanges: pending,
		IsSyncing:      false,
	})

	log.Info().
		Int("pushed", pushResult.Pushed).
		Int("push_failed", pushResult.Failed).
		Int("pulled_created", pullResult.Created).
		Int("pulled_updated", pullResult.Updated).
		Int("pulled_deleted", pullResult.Deleted).
		Msg("sync cycle complete")

	return nil
}

// QueueOperation enqueues a local mutation for the next push cycle (spec
// §4.6's queue_operation(op, table, rid, payload), delegating to
// SyncQueue.enqueue), then refreshes pending_changes in the published
// EngineState so subscribers see the new item without waiting for a sync.
func (o *Orchestrator) QueueOperation(ctx context.Context, op engine.Operation, table, recordID string, payload map[string]any) error {
	err := o.store.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		_, err := o.queue.Enqueue(tx, op, table, recordID, payload)
		return err
	})
	if err != nil {
		return err
	}

	pending, err := o.queue.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to refresh pending count after queue_operation")
		return nil
	}

	o.mu.Lock()
	o.state.PendingChanges = pending
	o.notifyLocked()
	o.mu.Unlock()
	return nil
}

// beginSync transitions idle -> syncing, or reports false if already
// syncing.
func (o *Orchestrator) beginSync() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.IsSyncing {
		return false
	}
	o.state.IsSyncing = true
	o.state.Status = engine.EngineSyncing
	o.notifyLocked()
	return true
}

func (o *Orchestrator) endSync() {
	o.mu.Lock()
	o.state.IsSyncing = false
	o.mu.Unlock()
}

func (o *Orchestrator) setError(err error) {
	msg := err.Error()
	o.mu.Lock()
	o.state.Status = engine.EngineError
	o.state.Error = &msg
	o.state.IsSyncing = false
	o.notifyLocked()
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s engine.EngineState) {
	o.mu.Lock()
	o.state = s
	o.notifyLocked()
	o.mu.Unlock()
}

// notifyLocked must be called with o.mu held.
func (o *Orchestrator) notifyLocked() {
	snapshot := o.state.Clone()
	for _, l := range o.listeners {
		go func(l func(engine.EngineState)) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("state listener panicked")
				}
			}()
			l(snapshot)
		}(l)
	}
}

// State returns a defensive copy of the current engine state (spec §4.6).
func (o *Orchestrator) State() engine.EngineState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Subscribe registers a listener for state changes and returns a func that
// removes it. Each listener runs in its own goroutine so a panicking or slow
// subscriber cannot block another.
func (o *Orchestrator) Subscribe(listener func(engine.EngineState)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = listener
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}
