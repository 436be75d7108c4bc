package audio

import (
	"encoding/binary"
	"sync"
)

const fakeBlockFrames = 1024

// FakeContext is a deterministic in-memory capture backend for tests.
// It feeds a fixed sample buffer through the callback in fixed-size
// blocks when the capture device is started.
type FakeContext struct {
	samples []int16
	devices []DeviceInfo

	// Last is the most recently created capture, exposed so tests can
	// feed extra blocks mid-session.
	Last *FakeCapture
}

func NewFakeContext(samples []int16, devices ...DeviceInfo) *FakeContext {
	return &FakeContext{samples: samples, devices: devices}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.devices, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.Last = &FakeCapture{samples: f.samples}
	return f.Last, nil
}

type FakeCapture struct {
	samples []int16

	mu sync.Mutex
	cb DataCallback
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

// Start delivers the whole sample buffer synchronously. Tests drive
// pause/resume between explicit Feed calls instead of wall-clock time.
func (f *FakeCapture) Start() error {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb == nil {
		return nil
	}
	for pos := 0; pos < len(f.samples); pos += fakeBlockFrames {
		end := min(pos+fakeBlockFrames, len(f.samples))
		cb(encodeS16LE(f.samples[pos:end]), uint32(end-pos))
	}
	return nil
}

// Feed pushes extra samples through the callback after Start, letting
// tests interleave audio with state changes.
func (f *FakeCapture) Feed(samples []int16) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil && len(samples) > 0 {
		cb(encodeS16LE(samples), uint32(len(samples)))
	}
}

func (f *FakeCapture) Stop()  {}
func (f *FakeCapture) Close() {}

func encodeS16LE(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
