package capture

import (
	"fmt"
	"os"
)

// Artifact is a finalized, encoded recording ready for submission.
// It is immutable once produced; Release reclaims its temporary storage.
type Artifact struct {
	Path     string
	Duration float64 // seconds
	Format   string  // container name, e.g. "flac"
	Bitrate  int     // effective kbit/s
}

// Bytes reads the encoded audio from disk.
func (a *Artifact) Bytes() ([]byte, error) {
	if a == nil || a.Path == "" {
		return nil, fmt.Errorf("no artifact available")
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	return data, nil
}

// Release deletes the backing file. Safe to call twice.
func (a *Artifact) Release() {
	if a == nil || a.Path == "" {
		return
	}
	os.Remove(a.Path)
	a.Path = ""
}

// writeArtifact encodes normalized samples to a FLAC temp file and wraps
// it in an Artifact.
func writeArtifact(encoded []byte, duration float64) (*Artifact, error) {
	tmp, err := os.CreateTemp("", "sttnote-*.flac")
	if err != nil {
		return nil, fmt.Errorf("creating artifact file: %w", err)
	}
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing artifact file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	bitrate := 0
	if duration > 0 {
		bitrate = int(float64(len(encoded)) * 8 / duration / 1000)
	}
	return &Artifact{
		Path:     tmp.Name(),
		Duration: duration,
		Format:   "flac",
		Bitrate:  bitrate,
	}, nil
}
