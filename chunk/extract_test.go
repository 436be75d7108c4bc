package chunk

import (
	"bytes"
	"math"
	"os"
	"testing"

	"sttnote/capture"
	"sttnote/encoder"
)

func sineArtifact(t *testing.T, seconds float64, sampleRate int) *capture.Artifact {
	t.Helper()
	n := int(seconds * float64(sampleRate))
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	enc, err := encoder.NewFlac(sampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if err := encoder.EncodeAll(enc, samples); err != nil {
		t.Fatal(err)
	}

	f, err := os.CreateTemp(t.TempDir(), "extract-*.flac")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(enc.Bytes()); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return &capture.Artifact{Path: f.Name(), Duration: seconds, Format: "flac"}
}

func TestExtract(t *testing.T) {
	const sampleRate = 44100
	artifact := sineArtifact(t, 2.0, sampleRate)
	defer artifact.Release()

	spans, err := Plan(2.0, 1.0, 0.25)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := Extract(artifact, spans)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	defer func() {
		for _, c := range chunks {
			c.Release()
		}
	}()

	if len(chunks) != len(spans) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(spans))
	}

	for i, c := range chunks {
		if c.Format != "flac" {
			t.Errorf("chunk %d format = %q", i, c.Format)
		}
		data, err := c.Bytes()
		if err != nil {
			t.Fatalf("reading chunk %d: %v", i, err)
		}
		samples, rate, err := encoder.DecodeFlac(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decoding chunk %d: %v", i, err)
		}
		if rate != sampleRate {
			t.Errorf("chunk %d sample rate = %d", i, rate)
		}
		wantFrames := int(spans[i].Duration() * float64(sampleRate))
		if samples == nil || abs(len(samples)-wantFrames) > 1 {
			t.Errorf("chunk %d has %d frames, want about %d", i, len(samples), wantFrames)
		}
	}
}

func TestExtractMissingArtifact(t *testing.T) {
	artifact := &capture.Artifact{Path: "/nonexistent/audio.flac", Duration: 2, Format: "flac"}
	spans, err := Plan(2.0, 1.0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(artifact, spans); err == nil {
		t.Error("expected error for missing artifact file")
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
