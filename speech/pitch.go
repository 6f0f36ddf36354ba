package speech

import (
	"encoding/binary"
	"math"
)

// ShiftPitch resamples mono signed 16-bit little endian PCM so that it
// sounds factor times higher when played at the original rate. Lower pitch
// also means slower speech. A factor of 1, or one that is not positive,
// returns pcm unchanged.
func ShiftPitch(pcm []byte, factor float64) []byte {
	if factor <= 0 || factor == 1 || len(pcm) < 4 {
		return pcm
	}

	in := len(pcm) / 2
	out := int(math.Floor(float64(in-1)/factor)) + 1
	res := make([]byte, out*2)

	sample := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	for j := 0; j < out; j++ {
		pos := float64(j) * factor
		i := int(pos)
		v := sample(i)
		if i+1 < in {
			frac := pos - float64(i)
			v += (sample(i+1) - v) * frac
		}
		binary.LittleEndian.PutUint16(res[j*2:], uint16(int16(math.Round(v))))
	}
	return res
}
