// Package audio abstracts microphone capture behind a small device
// interface with a PulseAudio backend on Linux and miniaudio elsewhere.
package audio

import (
	"errors"
	"fmt"
)

// ErrDeviceNotFound is returned when a requested device name does not
// resolve to any input-capable device.
var ErrDeviceNotFound = errors.New("audio device not found")

// DataCallback receives raw little-endian S16 mono PCM from the device.
type DataCallback func(pcm []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	// Devices lists devices exposing at least one input channel.
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Resolve maps a device name to its DeviceInfo. An empty name selects the
// system default (nil device).
func Resolve(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}
