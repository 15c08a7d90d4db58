package synth

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeWAV builds a minimal 16-bit PCM WAV.
func encodeWAV(samples []int16, rate, channels int) []byte {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(data)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(rate*channels*2))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data)))
	return append(header, data...)
}

func TestParseWAVMono(t *testing.T) {
	pcm, err := ParseWAV(encodeWAV([]int16{0, 100, -100, 32767}, 16000, 1))
	require.NoError(t, err)
	require.Equal(t, 16000, pcm.SampleRate)
	require.Equal(t, []int16{0, 100, -100, 32767}, pcm.Samples)
}

func TestParseWAVDownmixesStereo(t *testing.T) {
	pcm, err := ParseWAV(encodeWAV([]int16{100, 300, -50, -150}, 8000, 2))
	require.NoError(t, err)
	require.Equal(t, 8000, pcm.SampleRate)
	require.Equal(t, []int16{200, -100}, pcm.Samples)
}

func TestParseWAVToleratesOversizedDataLength(t *testing.T) {
	wav := encodeWAV([]int16{1, 2, 3}, 16000, 1)
	binary.LittleEndian.PutUint32(wav[40:44], 0xFFFFFFFF)

	pcm, err := ParseWAV(wav)
	require.NoError(t, err)
	require.Equal(t, []int16{1, 2, 3}, pcm.Samples)
}

func TestParseWAVErrors(t *testing.T) {
	eightBit := encodeWAV([]int16{1}, 16000, 1)
	binary.LittleEndian.PutUint16(eightBit[34:36], 8)

	float := encodeWAV([]int16{1}, 16000, 1)
	binary.LittleEndian.PutUint16(float[20:22], 3)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "garbage", data: []byte("not a wav"), want: "RIFF"},
		{name: "no data", data: encodeWAV(nil, 16000, 1)[:36], want: "no data chunk"},
		{name: "bit depth", data: eightBit, want: "bit depth 8"},
		{name: "float format", data: float, want: "format 3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseWAV(tc.data)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
