// Package audio plays raw 16-bit little endian PCM through the system audio
// device using oto/v3. Builds with the nocgo tag get a player that always
// reports the device as unavailable.
package audio
