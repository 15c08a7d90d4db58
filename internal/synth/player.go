package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/jarvis/internal/audio"
)

// Player renders decoded speech to an output device, reporting its level as it goes.
type Player interface {
	Play(ctx context.Context, pcm PCM, level *audio.LevelTracker) error
}

// PulsePlayer plays through the Pulse/PipeWire default sink.
type PulsePlayer struct {
	MediaName string
}

func (p PulsePlayer) Play(ctx context.Context, pcm PCM, level *audio.LevelTracker) error {
	if len(pcm.Samples) == 0 {
		return nil
	}
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("jarvis"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	name := p.MediaName
	if name == "" {
		name = "jarvis speech"
	}

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(pcm.Samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, pcm.Samples[cursor:])
		level.Set(audio.RMSInt16(buf[:n]))
		cursor += n
		if cursor >= len(pcm.Samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(pcm.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(name),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	drained := make(chan struct{})
	go func() {
		stream.Drain()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		stream.Stop()
		select {
		case <-drained:
		case <-time.After(500 * time.Millisecond):
		}
		return ctx.Err()
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play speech stream: %w", err)
	}
	return nil
}
