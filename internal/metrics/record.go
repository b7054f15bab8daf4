package metrics

import (
	"time"
)

// RecordCommand counts an editor command.
func (r *Registry) RecordCommand(command string, applied bool) {
	result := "applied"
	if !applied {
		result = "rejected"
	}
	r.CommandsTotal.WithLabelValues(command, result).Inc()
}

// RecordGesture counts a gesture entered by the interaction controller.
func (r *Registry) RecordGesture(gesture string) {
	r.GesturesTotal.WithLabelValues(gesture).Inc()
}

// RecordRecompute records one synchronous stats and verdict refresh.
func (r *Registry) RecordRecompute(chainID string, nodes, edges int, verdict string, d time.Duration) {
	r.RecomputeDuration.Observe(d.Seconds())
	r.ChainNodes.WithLabelValues(chainID).Set(float64(nodes))
	r.ChainEdges.WithLabelValues(chainID).Set(float64(edges))
	r.VerdictsTotal.WithLabelValues(verdict).Inc()
}

// RecordEvent counts a published change event.
func (r *Registry) RecordEvent(kind string) {
	r.EventsPublishedTotal.WithLabelValues(kind).Inc()
}

// RecordSave records a chain save.
func (r *Registry) RecordSave(trigger string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.SavesTotal.WithLabelValues(trigger, result).Inc()
	r.SaveDuration.Observe(d.Seconds())
}

// ForgetChain drops the per-chain gauges of a closed chain.
func (r *Registry) ForgetChain(chainID string) {
	r.ChainNodes.DeleteLabelValues(chainID)
	r.ChainEdges.DeleteLabelValues(chainID)
}
