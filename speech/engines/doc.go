// Package engines provides the speech synthesizers: Piper (offline), gTTS
// (online, through gtts-cli and ffmpeg) and a mock that produces tones.
package engines
