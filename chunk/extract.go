package chunk

import (
	"bytes"
	"fmt"
	"os"

	"sttnote/capture"
	"sttnote/encoder"
)

// Extract slices the artifact along the planned spans and re-encodes
// each slice as a standalone FLAC artifact, so every chunk can be
// submitted on its own to a provider that only accepts complete files.
// Callers release each returned artifact once consumed.
func Extract(artifact *capture.Artifact, spans []Span) ([]*capture.Artifact, error) {
	data, err := artifact.Bytes()
	if err != nil {
		return nil, fmt.Errorf("reading artifact for chunking: %w", err)
	}
	samples, sampleRate, err := encoder.DecodeFlac(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding artifact for chunking: %w", err)
	}

	chunks := make([]*capture.Artifact, 0, len(spans))
	release := func() {
		for _, c := range chunks {
			c.Release()
		}
	}

	for _, span := range spans {
		startFrame := int(span.Start * float64(sampleRate))
		endFrame := int(span.End * float64(sampleRate))
		if startFrame < 0 {
			startFrame = 0
		}
		if endFrame > len(samples) {
			endFrame = len(samples)
		}
		if startFrame >= endFrame {
			release()
			return nil, fmt.Errorf("chunk %d maps to an empty sample range", span.Index)
		}

		enc, err := encoder.NewFlac(sampleRate)
		if err != nil {
			release()
			return nil, err
		}
		if err := encoder.EncodeAll(enc, samples[startFrame:endFrame]); err != nil {
			release()
			return nil, fmt.Errorf("encoding chunk %d: %w", span.Index, err)
		}

		chunkArtifact, err := writeChunk(enc.Bytes(), span)
		if err != nil {
			release()
			return nil, err
		}
		chunks = append(chunks, chunkArtifact)
	}
	return chunks, nil
}

func writeChunk(encoded []byte, span Span) (*capture.Artifact, error) {
	tmp, err := os.CreateTemp("", fmt.Sprintf("sttnote-chunk%03d-*.flac", span.Index))
	if err != nil {
		return nil, fmt.Errorf("creating chunk file: %w", err)
	}
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing chunk file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	duration := span.Duration()
	bitrate := 0
	if duration > 0 {
		bitrate = int(float64(len(encoded)) * 8 / duration / 1000)
	}
	return &capture.Artifact{
		Path:     tmp.Name(),
		Duration: duration,
		Format:   "flac",
		Bitrate:  bitrate,
	}, nil
}
