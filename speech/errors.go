package speech

import "errors"

var (
	// ErrDisabled is returned by Init of a device that never produces speech.
	ErrDisabled = errors.New("speech output disabled")

	// ErrNotInitialized is returned by Speak before Init succeeded.
	ErrNotInitialized = errors.New("speech device is not initialized")

	// ErrShutdown is returned after Shutdown.
	ErrShutdown = errors.New("speech device has been shut down")

	// ErrEmptyText is returned when there is nothing to say.
	ErrEmptyText = errors.New("empty text")

	// ErrTextTooLong is returned for text above the synthesizer limit.
	ErrTextTooLong = errors.New("text too long")
)
