package audio

import (
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	preInitOnce sync.Once
	preInitDone = make(chan struct{})
	preInitErr  error
)

// PreInitAudio starts PortAudio initialization in the background.
// Call this early (e.g. at app startup) so slow device enumeration happens
// while the user is still logging in.
func PreInitAudio() {
	preInitOnce.Do(func() {
		go func() {
			slog.Debug("pre-initializing PortAudio...")
			if err := portaudio.Initialize(); err != nil {
				preInitErr = err
				slog.Error("pre-init portaudio failed", "err", err)
			}
			close(preInitDone)
		}()
	})
}

// WaitPreInit blocks until the background PreInitAudio completes and
// returns its error. If PreInitAudio was never called, it triggers it now.
func WaitPreInit() error {
	PreInitAudio()
	<-preInitDone
	return preInitErr
}

// DeviceEntry holds basic info about an audio device.
type DeviceEntry struct {
	Name      string
	MaxInputs int
	IsDefault bool
}

// ListInputDevices returns all available audio input devices.
func ListInputDevices() ([]DeviceEntry, error) {
	if err := WaitPreInit(); err != nil {
		return nil, err
	}

	defaultIn, _ := portaudio.DefaultInputDevice()
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var result []DeviceEntry
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		result = append(result, DeviceEntry{
			Name:      d.Name,
			MaxInputs: d.MaxInputChannels,
			IsDefault: defaultIn != nil && d.Name == defaultIn.Name,
		})
	}
	return result, nil
}

// FindDevice returns the *portaudio.DeviceInfo matching by name, or nil.
func FindDevice(name string) *portaudio.DeviceInfo {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil
	}
	for _, d := range devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}
