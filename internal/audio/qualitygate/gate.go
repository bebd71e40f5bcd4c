// Package qualitygate screens captured utterances before they are submitted
// for transcription. The checks are deterministic functions of the PCM
// samples, so the same clip always gets the same verdict.
package qualitygate

import (
	"encoding/binary"
)

// Expected capture format: 16 kHz mono signed 16-bit little-endian PCM.
const (
	SampleRate = 16000

	// minSamples rejects clips shorter than half a second.
	minSamples = SampleRate / 2

	// windowSamples is 50 ms of audio, the granularity of the energy
	// stability check.
	windowSamples = 800

	wavHeaderSize = 44
)

// Tuning thresholds.
const (
	maxEnergyJump     = 0.8
	maxAvgEnergyJump  = 0.2
	maxZeroCrossRate  = 0.3
	maxPeakDensity    = 300.0 // peaks per second
	peakMagnitude     = 0.1
	impulseMagnitude  = 0.9
	impulseMaxPeaks   = 10
	impulseEnergyJump = 0.5
)

// Rejection reasons, stable identifiers for client UI mapping.
const (
	ReasonTooShort = "tooShort"
	ReasonUnstable = "unstableEnergy"
	ReasonNoise    = "highFrequencyNoise"
	ReasonImpulse  = "impulse"
)

// Verdict is the outcome of one evaluation. Reason is empty when OK.
type Verdict struct {
	OK     bool
	Reason string
}

// Evaluate screens one clip. Raw PCM and WAV-wrapped PCM are both accepted;
// a leading RIFF header is stripped.
func Evaluate(data []byte) Verdict {
	samples := decodePCM(stripWAVHeader(data))

	if len(samples) < minSamples {
		return Verdict{Reason: ReasonTooShort}
	}

	maxJump, avgJump := energyJumps(samples)
	if maxJump > maxEnergyJump && avgJump > maxAvgEnergyJump {
		return Verdict{Reason: ReasonUnstable}
	}

	zcr := zeroCrossRate(samples)
	peaks, maxAbs := countPeaks(samples)
	density := float64(peaks) * SampleRate / float64(len(samples))

	if zcr > maxZeroCrossRate && density > maxPeakDensity {
		return Verdict{Reason: ReasonNoise}
	}

	if maxAbs > impulseMagnitude && peaks < impulseMaxPeaks && maxJump > impulseEnergyJump {
		return Verdict{Reason: ReasonImpulse}
	}

	return Verdict{OK: true}
}

// stripWAVHeader drops a canonical 44-byte RIFF header when present.
func stripWAVHeader(data []byte) []byte {
	if len(data) > wavHeaderSize && string(data[:4]) == "RIFF" {
		return data[wavHeaderSize:]
	}
	return data
}

func decodePCM(data []byte) []float64 {
	n := len(data) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float64(v) / 32768
	}
	return samples
}

// energyJumps measures how abruptly the per-window peak level moves between
// consecutive 50 ms windows. Speech ramps; keyboard clatter and dropouts
// jump.
func energyJumps(samples []float64) (maxJump, avgJump float64) {
	var energies []float64
	for start := 0; start+windowSamples <= len(samples); start += windowSamples {
		peak := 0.0
		for _, s := range samples[start : start+windowSamples] {
			if a := abs(s); a > peak {
				peak = a
			}
		}
		energies = append(energies, peak)
	}

	if len(energies) < 2 {
		return 0, 0
	}

	total := 0.0
	for i := 1; i < len(energies); i++ {
		jump := abs(energies[i] - energies[i-1])
		total += jump
		if jump > maxJump {
			maxJump = jump
		}
	}

	return maxJump, total / float64(len(energies)-1)
}

func zeroCrossRate(samples []float64) float64 {
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i] >= 0) != (samples[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples))
}

// countPeaks counts strict local maxima of the absolute signal above the
// peak magnitude floor, and reports the overall absolute maximum.
func countPeaks(samples []float64) (peaks int, maxAbs float64) {
	for i := range samples {
		a := abs(samples[i])
		if a > maxAbs {
			maxAbs = a
		}
		if i == 0 || i == len(samples)-1 || a <= peakMagnitude {
			continue
		}
		if a > abs(samples[i-1]) && a > abs(samples[i+1]) {
			peaks++
		}
	}
	return peaks, maxAbs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
