package gate

// Metrics compares gated transmissions with an always-transmit baseline
type Metrics struct {
	Traditional  uint64
	EdgeAI       uint64
	ReductionPct float64
}

// NewMetrics derives the reduction percentage; zero baseline yields zero
func NewMetrics(traditional, edge uint64) Metrics {
	m := Metrics{Traditional: traditional, EdgeAI: edge}
	if traditional > 0 {
		m.ReductionPct = 100 * (1 - float64(edge)/float64(traditional))
	}
	return m
}

// Finalize sums counters over all slots. Call only after every slot's
// processing for the measured window has finished.
func Finalize(states map[string]SlotState) Metrics {
	var trad, edge uint64
	for _, s := range states {
		trad += s.TradTxCount
		edge += s.EdgeTxCount
	}
	return NewMetrics(trad, edge)
}

// FinalizePerSlot computes metrics for each slot separately
func FinalizePerSlot(states map[string]SlotState) map[string]Metrics {
	out := make(map[string]Metrics, len(states))
	for id, s := range states {
		out[id] = NewMetrics(s.TradTxCount, s.EdgeTxCount)
	}
	return out
}
