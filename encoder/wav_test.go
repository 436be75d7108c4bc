package encoder

import "testing"

func TestWAVRoundtrip(t *testing.T) {
	samples := sineSamples(DefaultSampleRate/2, 220, DefaultSampleRate)

	data, err := EncodeWAV(samples, DefaultSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(data) != WAVHeaderSize+len(samples)*2 {
		t.Errorf("encoded size = %d, want %d", len(data), WAVHeaderSize+len(samples)*2)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", rate, DefaultSampleRate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, DefaultSampleRate); err == nil {
		t.Error("expected error for empty sample buffer")
	}
}

func TestDecodeWAVGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav file, nowhere near long enough")); err == nil {
		t.Error("expected error for non-wav input")
	}
}
