package dispatch

// ListenerStat is one row of the observability snapshot: a listener's
// string form paired with its current queue depth. Depths are advisory —
// the snapshot may be weakly consistent with concurrent submission and
// retirement.
type ListenerStat struct {
	Listener string
	Depth    int
}

// ListenerStats returns one ListenerStat per listener with a currently-live
// task in the Registry. The listener's "string form" is its ListenerKey's
// String(), not anything the listener's own type defines — consistent with
// treating the listener purely by identity everywhere else in this
// package.
func (d *Dispatcher) ListenerStats() []ListenerStat {
	tasks := d.reg.snapshot()
	stats := make([]ListenerStat, 0, len(tasks))
	for _, t := range tasks {
		stats = append(stats, ListenerStat{
			Listener: t.key.String(),
			Depth:    t.depth(),
		})
	}
	return stats
}
