package device

import (
	"math"

	"github.com/dkeye/voicemesh/internal/activity"
)

const (
	gateThreshold = 0.003
	agcTarget     = 0.1
	agcMaxGain    = 8.0
	agcAttack     = 0.2
	agcRelease    = 0.02
)

// processor applies the source-side voice processing the microphone driver
// does not offer natively.
type processor struct {
	noiseGate bool
	agc       bool
	agcGain   float64
}

func newProcessor(noiseGate, agc bool) *processor {
	return &processor{noiseGate: noiseGate, agc: agc, agcGain: 1}
}

// apply processes pcm in place.
func (p *processor) apply(pcm []int16) {
	rms := activity.RMSInt16(pcm)
	if p.noiseGate && rms < gateThreshold {
		clear(pcm)
		return
	}
	if !p.agc || rms == 0 {
		return
	}
	want := min(agcTarget/rms, agcMaxGain)
	rate := agcRelease
	if want < p.agcGain {
		rate = agcAttack
	}
	p.agcGain += (want - p.agcGain) * rate
	if math.Abs(p.agcGain-1) > 1e-3 {
		activity.ApplyGain(pcm, p.agcGain)
	}
}
