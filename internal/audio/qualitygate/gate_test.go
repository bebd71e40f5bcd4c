package qualitygate

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcmBytes(samples []float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func sine(freq, amp float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/SampleRate)
	}
	return out
}

func repeatPattern(pattern []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		wantOK  bool
		reason  string
	}{
		{
			name:    "rejects clip shorter than half a second",
			samples: make([]float64, SampleRate*3/10),
			reason:  ReasonTooShort,
		},
		{
			name:    "accepts steady voiced tone",
			samples: sine(440, 0.5, 2*SampleRate),
			wantOK:  true,
		},
		{
			name: "rejects high frequency rattle",
			// Roughly a 2.7 kHz sawtooth: every sixth sample is a peak
			// and a third of all transitions cross zero.
			samples: repeatPattern([]float64{0.3, 0.6, 0.3, -0.3, -0.6, -0.3}, SampleRate),
			reason:  ReasonNoise,
		},
		{
			name: "rejects isolated click",
			samples: func() []float64 {
				s := make([]float64, SampleRate)
				s[SampleRate/2] = 0.95
				return s
			}(),
			reason: ReasonImpulse,
		},
		{
			name: "rejects clip with slamming level swings",
			samples: func() []float64 {
				s := make([]float64, SampleRate)
				tone := sine(440, 0.9, windowSamples)
				for w := 0; w*windowSamples < len(s); w += 2 {
					copy(s[w*windowSamples:], tone)
				}
				return s
			}(),
			reason: ReasonUnstable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(pcmBytes(tt.samples))
			if got.OK != tt.wantOK {
				t.Fatalf("Evaluate OK = %v, want %v (reason %q)", got.OK, tt.wantOK, got.Reason)
			}
			if got.Reason != tt.reason {
				t.Fatalf("Evaluate reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestEvaluateStripsWAVHeader(t *testing.T) {
	body := pcmBytes(sine(440, 0.5, 2*SampleRate))

	header := make([]byte, wavHeaderSize)
	copy(header, "RIFF")
	copy(header[8:], "WAVEfmt ")

	got := Evaluate(append(header, body...))
	if !got.OK {
		t.Fatalf("Evaluate on WAV-wrapped clip rejected with %q", got.Reason)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	clip := pcmBytes(sine(220, 0.4, SampleRate))

	first := Evaluate(clip)
	for i := 0; i < 5; i++ {
		if got := Evaluate(clip); got != first {
			t.Fatalf("verdict changed between runs: %+v vs %+v", got, first)
		}
	}
}
