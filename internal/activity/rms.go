package activity

import "math"

// MaxSampleValue is the full-scale magnitude of 16-bit signed audio.
const MaxSampleValue = 32768.0

// RMSInt16 returns the root-mean-square of pcm normalised to [0, 1].
func RMSInt16(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / MaxSampleValue
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// RMSFloat32 returns the root-mean-square of samples in [-1, 1].
func RMSFloat32(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ApplyGain scales pcm in place, saturating at the int16 range.
func ApplyGain(pcm []int16, gain float64) {
	if gain == 1 {
		return
	}
	for i, s := range pcm {
		v := math.Round(float64(s) * gain)
		switch {
		case v > math.MaxInt16:
			pcm[i] = math.MaxInt16
		case v < math.MinInt16:
			pcm[i] = math.MinInt16
		default:
			pcm[i] = int16(v)
		}
	}
}
