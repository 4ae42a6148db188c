package broadcast

import "trading-simulator/src/interfaces"

// Fanout emits every event to all of its targets, in order.
type Fanout struct {
	targets []interfaces.IBroadcaster
}

func NewFanout(targets ...interfaces.IBroadcaster) *Fanout {
	var kept []interfaces.IBroadcaster
	for _, t := range targets {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &Fanout{targets: kept}
}

func (f *Fanout) Emit(event string, payload interface{}) {
	for _, t := range f.targets {
		t.Emit(event, payload)
	}
}
