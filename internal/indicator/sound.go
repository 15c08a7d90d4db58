package indicator

import (
	"context"
	"math"
	"time"

	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/synth"
)

type cueKind int

const (
	cueListen cueKind = iota + 1
	cueStop
	cueSwitch
	cueFault
)

const (
	cueSampleRate = 16000
	cueVolume     = 0.18
	cueGap        = 22 * time.Millisecond
	cueRamp       = 5 * time.Millisecond
)

// tone is one sine segment of a cue.
type tone struct {
	hz       float64
	duration time.Duration
}

var cues = map[cueKind][]int16{
	cueListen: synthesizeCue(tone{880, 70 * time.Millisecond}, tone{1175, 70 * time.Millisecond}),
	cueStop:   synthesizeCue(tone{620, 120 * time.Millisecond}),
	cueSwitch: synthesizeCue(tone{740, 65 * time.Millisecond}, tone{988, 65 * time.Millisecond}, tone{1319, 90 * time.Millisecond}),
	cueFault:  synthesizeCue(tone{480, 75 * time.Millisecond}, tone{360, 110 * time.Millisecond}),
}

var cuePlayer synth.Player = synth.PulsePlayer{MediaName: "jarvis cue"}

func emitCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cues[kind]
	if len(samples) == 0 {
		return nil
	}
	// Cue output is not metered; the tracker is discarded.
	var level audio.LevelTracker
	return cuePlayer.Play(ctx, synth.PCM{Samples: samples, SampleRate: cueSampleRate}, &level)
}

func synthesizeCue(parts ...tone) []int16 {
	gap := make([]int16, samplesFor(cueGap))
	var pcm []int16
	for i, part := range parts {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, synthesizeTone(part)...)
	}
	return pcm
}

// synthesizeTone renders a sine with linear attack and release ramps.
func synthesizeTone(t tone) []int16 {
	n := samplesFor(t.duration)
	if n <= 0 || t.hz <= 0 {
		return nil
	}
	ramp := min(max(n/10, 1), samplesFor(cueRamp))

	pcm := make([]int16, n)
	for i := range pcm {
		envelope := min(1, float64(i)/float64(ramp), float64(n-i-1)/float64(ramp))
		phase := 2 * math.Pi * t.hz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * cueVolume * envelope * math.MaxInt16))
	}
	return pcm
}

func samplesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
