package actions

import "github.com/opencode-ai/pulse/internal/models"

// Dispatch runs one scheduling pass at time now.
//
// The scheduled set is copied into the snapshot buffer first. Actions
// scheduled while the pass runs wait for the next pass, and removing an action
// never shifts the ones after it out of this one. An action descheduled by a
// callback earlier in the same pass is skipped. Each visited action either starts, or is ticked and possibly stopped. Stopped
// actions that are not frozen are descheduled at the end of the pass.
//
// The first call seals the registry against new actions. A call made from
// inside a handler callback is ignored.
func (r *Registry) Dispatch(now uint64) {
	if r.dispatching {
		r.logger.Warn().Uint64("now", now).Msg("re-entrant dispatch ignored")
		return
	}
	r.dispatching = true
	defer func() { r.dispatching = false }()

	r.sealed = true
	r.lastNow = now
	r.stats.Passes++

	count := copy(r.snapshot, r.list.handles)
	for _, h := range r.snapshot[:count] {
		a := &r.pool[h]

		// Descheduled by an earlier callback in this pass.
		if a.state == models.ActionStateNonActive {
			continue
		}

		if a.CanStartAt(now) {
			r.start(a, now)
			continue
		}
		if a.ShouldTickAt(now) {
			r.tick(a, now)
		}
		if a.ShouldStopAt(now) {
			r.stop(a, now)
		}
	}

	r.sweep()
}

func (r *Registry) start(a *Action, now uint64) {
	a.handler.OnStart(a)
	r.setState(a, models.ActionStateRunning)
	a.lastStart = now
	r.stats.Starts++
	r.notify(TransitionStarted, a, nil)

	a.eachDependent(func(d *Action) {
		d.handler.OnStart(d)
		r.setState(d, models.ActionStateRunning)
		d.lastStart = now
		r.notify(TransitionStarted, d, a)
	})

	r.logger.Debug().Str("action", a.name).Uint64("now", now).Msg("action started")
}

func (r *Registry) tick(a *Action, now uint64) {
	a.handler.OnTick(a)
	r.stats.Ticks++
	r.notify(TransitionTicked, a, nil)
}

func (r *Registry) stop(a *Action, now uint64) {
	a.eachDependentReverse(func(d *Action) {
		d.handler.OnStop(d)
		r.setState(d, models.ActionStatePending)
		d.lastStop = now
		d.hasStopped = true
		r.notify(TransitionStopped, d, a)
	})

	a.handler.OnStop(a)
	a.lastStop = now
	a.hasStopped = true
	r.setState(a, models.ActionStatePending)
	a.pendingClear = !a.frozen
	a.stopRequested = false
	r.stats.Stops++
	r.notify(TransitionStopped, a, nil)

	r.logger.Debug().
		Str("action", a.name).
		Uint64("now", now).
		Bool("frozen", a.frozen).
		Msg("action stopped")
}

// sweep deschedules every action marked for removal during the pass. The whole
// pool is scanned, not only the snapshot.
func (r *Registry) sweep() {
	for i := range r.pool {
		a := &r.pool[i]
		if !a.pendingClear {
			continue
		}
		if err := r.deschedule(a); err != nil {
			r.logger.Debug().Err(err).Str("action", a.name).Msg("sweep skipped action")
		} else {
			r.stats.Swept++
		}
		a.pendingClear = false
	}
}
