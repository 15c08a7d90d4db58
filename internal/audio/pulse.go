package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// pulseStream records mono s16le from one Pulse source.
type pulseStream struct {
	*frameSink
	device Device

	client *pulse.Client
	record *pulse.RecordStream

	stopOnce sync.Once
	stopped  chan struct{}
}

func newPulseStream(device Device, frameSize int) *pulseStream {
	return &pulseStream{
		frameSink: newFrameSink(frameSize),
		device:    device,
		stopped:   make(chan struct{}),
	}
}

func openPulse(ctx context.Context, cfg Config) (Stream, Selection, error) {
	selection, err := SelectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return nil, Selection{}, err
	}

	client, err := newPulseClient()
	if err != nil {
		return nil, selection, err
	}
	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return nil, selection, fmt.Errorf("resolve source %q: %w", selection.Device.ID, err)
	}

	frameSize := chunkBytes(cfg.SampleRate)
	stream := newPulseStream(selection.Device, frameSize)
	stream.client = client
	stream.record, err = client.NewRecord(
		pulse.NewWriter(stream.frameSink, pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(frameSize)),
		pulse.RecordMediaName("jarvis listening"),
	)
	if err != nil {
		_ = stream.Stop()
		return nil, selection, fmt.Errorf("create pulse record stream: %w", err)
	}
	stream.record.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Stop()
		case <-stream.stopped:
		}
	}()
	return stream, selection, nil
}

func (p *pulseStream) Device() Device { return p.device }

// Stop is idempotent. Residual PCM is delivered before Chunks closes.
func (p *pulseStream) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stopped)
		p.frameSink.close()
		if p.record != nil {
			p.record.Stop()
			p.record.Close()
		}
		if p.client != nil {
			p.client.Close()
		}
	})
	return nil
}
