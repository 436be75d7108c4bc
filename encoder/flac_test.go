package encoder

import (
	"bytes"
	"math"
	"testing"
)

func sineSamples(n int, freq float64, sampleRate int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 12000)
	}
	return samples
}

func TestFlacEncodeDecodeRoundtrip(t *testing.T) {
	samples := sineSamples(BlockSize*2+BlockSize/2, 440, DefaultSampleRate)

	enc, err := NewFlac(DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := EncodeAll(enc, samples); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}

	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}

	flacData := enc.Bytes()
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	decoded, rate, err := DecodeFlac(bytes.NewReader(flacData))
	if err != nil {
		t.Fatalf("DecodeFlac: %v", err)
	}
	if rate != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", rate, DefaultSampleRate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}
	// Verbatim prediction means the roundtrip is lossless.
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac(DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderInvalidRate(t *testing.T) {
	if _, err := NewFlac(0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}
