// Package capture owns the microphone recording session: it accumulates
// sample blocks from the device callback, tracks elapsed recording time,
// meters input volume, and finalizes the buffered audio into a compressed
// artifact on stop.
package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"sttnote/audio"
	"sttnote/encoder"
	"sttnote/events"
)

// levelScale maps normalized RMS (0..1) into the 0-100 meter range.
// Speech on a typical microphone peaks the meter around -12 dBFS.
const levelScale = 500

type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Session is a single recording lifecycle: Idle → Recording ⇄ Paused →
// Stopped. The device callback is the only writer of the sample buffer
// until Stop finalizes it.
type Session struct {
	bus        evbus.Bus
	sampleRate int

	mu          sync.Mutex
	state       State
	blocks      [][]int16
	totalFrames uint64
	lastSecond  int

	device audio.CaptureDevice
}

func NewSession(bus evbus.Bus, sampleRate int) *Session {
	if sampleRate <= 0 {
		sampleRate = encoder.DefaultSampleRate
	}
	return &Session{
		bus:        bus,
		sampleRate: sampleRate,
		state:      StateIdle,
		lastSecond: -1,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed reports recorded seconds. It is derived from buffered frames,
// so paused stretches never count.
func (s *Session) Elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.totalFrames) / float64(s.sampleRate)
}

// Start resolves deviceName (empty selects the system default), opens a
// capture stream on it and begins buffering. Returns
// audio.ErrDeviceNotFound when the name does not resolve.
func (s *Session) Start(ctx audio.Context, deviceName string) error {
	s.mu.Lock()
	if s.state == StateRecording || s.state == StatePaused {
		s.mu.Unlock()
		return fmt.Errorf("recording already in progress")
	}
	s.mu.Unlock()

	dev, err := audio.Resolve(ctx, deviceName)
	if err != nil {
		return err
	}

	capDev, err := ctx.NewCapture(dev, audio.CaptureConfig{
		SampleRate: uint32(s.sampleRate),
		Channels:   encoder.Channels,
	})
	if err != nil {
		return fmt.Errorf("opening capture device: %w", err)
	}

	s.mu.Lock()
	s.state = StateRecording
	s.device = capDev
	s.mu.Unlock()

	capDev.SetCallback(s.onData)
	if err := capDev.Start(); err != nil {
		capDev.ClearCallback()
		capDev.Close()
		s.mu.Lock()
		s.state = StateIdle
		s.device = nil
		s.mu.Unlock()
		return fmt.Errorf("starting capture: %w", err)
	}
	return nil
}

// onData runs on the audio callback thread.
func (s *Session) onData(pcm []byte, frameCount uint32) {
	s.mu.Lock()
	if s.state != StateRecording {
		// Paused or stopping: incoming blocks are dropped, time frozen.
		s.mu.Unlock()
		return
	}

	block := make([]int16, len(pcm)/2)
	for i := range block {
		block[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	s.blocks = append(s.blocks, block)
	s.totalFrames += uint64(frameCount)

	second := int(s.totalFrames / uint64(s.sampleRate))
	tickSecond := -1
	if second != s.lastSecond {
		s.lastSecond = second
		tickSecond = second
	}
	s.mu.Unlock()

	if tickSecond >= 0 {
		s.bus.Publish(events.TopicElapsed, tickSecond)
	}
	s.bus.Publish(events.TopicLevel, meterLevel(block))
}

// meterLevel computes the RMS of one block normalized by its length and
// scales it into 0-100, clipping at 100.
func meterLevel(block []int16) int {
	if len(block) == 0 {
		return 0
	}
	var sumSquares float64
	for _, sample := range block {
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	rms := math.Sqrt(sumSquares / float64(len(block)))
	level := int(rms * levelScale)
	if level > 100 {
		level = 100
	}
	return level
}

// TogglePause flips between Recording and Paused and reports whether the
// session is now paused. While paused, device blocks are discarded.
func (s *Session) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRecording:
		s.state = StatePaused
		return true
	case StatePaused:
		s.state = StateRecording
		return false
	default:
		return false
	}
}

// Stop closes the stream and finalizes buffered audio: blocks are
// concatenated in arrival order, peak-normalized, written to a lossless
// WAV intermediate, encoded to a FLAC artifact, and the intermediate is
// removed. With zero captured blocks no artifact is produced and the
// caller gets (nil, nil) alongside a "no audio recorded" status event.
func (s *Session) Stop() (*Artifact, error) {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return nil, fmt.Errorf("no recording in progress")
	}
	s.state = StateStopped
	dev := s.device
	s.device = nil
	s.mu.Unlock()

	if dev != nil {
		dev.Stop()
		dev.ClearCallback()
		dev.Close()
	}

	s.mu.Lock()
	blocks := s.blocks
	totalFrames := s.totalFrames
	s.mu.Unlock()

	if len(blocks) == 0 {
		s.bus.Publish(events.TopicStatus, "no audio recorded")
		return nil, nil
	}

	samples := make([]int16, 0, totalFrames)
	for _, b := range blocks {
		samples = append(samples, b...)
	}
	samples = normalize(samples)

	wavData, err := encoder.EncodeWAV(samples, s.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("encoding wav intermediate: %w", err)
	}
	wavFile, err := os.CreateTemp("", "sttnote-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating wav intermediate: %w", err)
	}
	wavPath := wavFile.Name()
	_, werr := wavFile.Write(wavData)
	wavFile.Close()
	defer os.Remove(wavPath)
	if werr != nil {
		return nil, fmt.Errorf("writing wav intermediate: %w", werr)
	}

	return encodeArtifact(wavPath)
}

// encodeArtifact converts the WAV intermediate into the FLAC artifact.
// The intermediate file is the hand-off point, so the compressed output
// reflects exactly what landed on disk.
func encodeArtifact(wavPath string) (*Artifact, error) {
	wavData, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("reading wav intermediate: %w", err)
	}
	samples, rate, err := encoder.DecodeWAV(wavData)
	if err != nil {
		return nil, fmt.Errorf("decoding wav intermediate: %w", err)
	}

	var enc encoder.Encoder
	enc, err = encoder.NewFlac(rate)
	if err != nil {
		return nil, err
	}
	if err := encoder.EncodeAll(enc, samples); err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}

	duration := float64(enc.TotalFrames()) / float64(rate)
	return writeArtifact(enc.Bytes(), duration)
}

// Clear discards buffered samples and resets elapsed time. It is a reset
// operation, valid in any state.
func (s *Session) Clear() {
	s.mu.Lock()
	dev := s.device
	s.device = nil
	s.blocks = nil
	s.totalFrames = 0
	s.lastSecond = -1
	s.state = StateIdle
	s.mu.Unlock()

	if dev != nil {
		dev.Stop()
		dev.ClearCallback()
		dev.Close()
	}
}
