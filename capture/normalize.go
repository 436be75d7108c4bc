package capture

// peakTarget leaves a little headroom below full scale after
// normalization.
const peakTarget = 0.95

// normalize scales samples so the peak hits peakTarget of full scale.
// Silence (all-zero) and already-hot recordings pass through unscaled
// rather than being amplified into clipping.
func normalize(samples []int16) []int16 {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return samples
	}

	gain := peakTarget * 32767 / float64(peak)
	if gain <= 1.0 {
		return samples
	}

	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
