package audio

import "math"

// GetRMS computes the RMS energy of a PCM frame, for level meters.
func GetRMS(pcm []int16) float64 {
	return computeRMS(pcm)
}

// NormalizedLevel maps an RMS value onto 0..1 for display. 5000 is loud
// speech close to the microphone.
func NormalizedLevel(rms float64) float64 {
	v := rms / 5000.0
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// computeRMS calculates the Root Mean Square of a PCM frame.
func computeRMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
