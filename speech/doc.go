// Package speech turns announcement text into audible speech. A Device
// accepts text with an interruption mode and a pitch; PCMDevice implements it
// on top of a Synthesizer, the audio cache and an audio player.
package speech
