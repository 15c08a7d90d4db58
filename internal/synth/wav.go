package synth

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PCM is decoded mono s16 audio.
type PCM struct {
	Samples    []int16
	SampleRate int
}

// ParseWAV decodes a 16-bit PCM RIFF/WAVE payload, downmixing to mono.
func ParseWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, errors.New("not a RIFF/WAVE file")
	}

	var (
		channels int
		rate     int
		bits     int
		haveFmt  bool
	)
	body := data[12:]
	for len(body) >= 8 {
		id := string(body[0:4])
		size := int(binary.LittleEndian.Uint32(body[4:8]))
		body = body[8:]
		if size > len(body) {
			// flite writes a streaming header with an oversized data length.
			size = len(body)
		}
		chunk := body[:size]

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, errors.New("short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(chunk[0:2]); format != 1 {
				return PCM{}, fmt.Errorf("unsupported wav format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			rate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			bits = int(binary.LittleEndian.Uint16(chunk[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return PCM{}, errors.New("data chunk before fmt chunk")
			}
			if bits != 16 {
				return PCM{}, fmt.Errorf("unsupported bit depth %d", bits)
			}
			if channels < 1 {
				return PCM{}, errors.New("wav has no channels")
			}
			return PCM{Samples: downmix(chunk, channels), SampleRate: rate}, nil
		}

		body = body[size:]
		if size%2 == 1 && len(body) > 0 {
			body = body[1:]
		}
	}
	return PCM{}, errors.New("wav has no data chunk")
}

func downmix(data []byte, channels int) []int16 {
	frames := len(data) / (2 * channels)
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			off := 2 * (i*channels + c)
			sum += int(int16(binary.LittleEndian.Uint16(data[off:])))
		}
		out[i] = int16(sum / channels)
	}
	return out
}
