package dispatch

import "sync"

// registry maps a ListenerKey to the currently-live notificationTask for
// that listener. It is touched only through get/insertIfAbsent/remove — the
// invariant that at most one live task per listener is reachable falls out
// of insertIfAbsent being atomic.
//
// Built on sync.Map rather than a mutex-guarded map: the access pattern is
// exactly what sync.Map is tuned for — a key is written once (insert) and
// once (remove), and read far more often by concurrent producers.
type registry struct {
	tasks sync.Map // ListenerKey -> *notificationTask
}

func (r *registry) get(key ListenerKey) (*notificationTask, bool) {
	v, ok := r.tasks.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*notificationTask), true
}

// insertIfAbsent publishes candidate under key iff no task is currently
// registered there. It always returns the task now registered under key —
// candidate if the insert won, the prior occupant otherwise — along with
// whether an existing task was found (i.e. candidate was discarded).
func (r *registry) insertIfAbsent(key ListenerKey, candidate *notificationTask) (actual *notificationTask, loaded bool) {
	v, loaded := r.tasks.LoadOrStore(key, candidate)
	return v.(*notificationTask), loaded
}

// remove unconditionally unlinks key. It is called only from a task's own
// exit path (or to undo a publication the worker pool refused to run),
// never speculatively by a producer.
func (r *registry) remove(key ListenerKey) {
	r.tasks.Delete(key)
}

// snapshot returns every currently-registered task, for QueueStats. May be
// weakly consistent with concurrent insert/remove, which callers of
// ListenerStats should treat as advisory, not authoritative.
func (r *registry) snapshot() []*notificationTask {
	var tasks []*notificationTask
	r.tasks.Range(func(_, v any) bool {
		tasks = append(tasks, v.(*notificationTask))
		return true
	})
	return tasks
}
