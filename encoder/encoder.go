// Package encoder converts PCM sample buffers between the lossless WAV
// intermediate used during capture and the compressed FLAC container
// submitted to transcription providers.
package encoder

const (
	DefaultSampleRate = 44100
	Channels          = 1
	BitsPerSample     = 16
	BlockSize         = 4096
)

// Encoder consumes fixed-size sample blocks and accumulates an encoded
// audio container in memory.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

// EncodeAll runs a whole sample buffer through enc in BlockSize blocks
// and finalizes it.
func EncodeAll(enc Encoder, samples []int16) error {
	for pos := 0; pos < len(samples); pos += BlockSize {
		end := min(pos+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[pos:end]); err != nil {
			return err
		}
	}
	return enc.Close()
}
