//go:build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

func init() {
	RegisterBackend("portaudio", openPortAudio)
}

var portAudioDevice = Device{ID: "portaudio-default", Description: "PortAudio default input", Available: true, Default: true}

// portAudioCapture reads the default PortAudio input device in blocking mode.
type portAudioCapture struct {
	*frameSink
	stream *portaudio.Stream
	buffer []int16

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func openPortAudio(ctx context.Context, cfg Config) (Stream, Selection, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, Selection{}, fmt.Errorf("initialize portaudio: %w", err)
	}

	frameSize := chunkBytes(cfg.SampleRate)
	capture := &portAudioCapture{
		frameSink: newFrameSink(frameSize),
		buffer:    make([]int16, frameSize/2),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), len(capture.buffer), capture.buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, Selection{}, fmt.Errorf("open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, Selection{}, fmt.Errorf("start portaudio stream: %w", err)
	}
	capture.stream = stream

	go capture.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = capture.Stop()
		case <-capture.stopCh:
		}
	}()
	return capture, Selection{Device: portAudioDevice}, nil
}

func (c *portAudioCapture) readLoop() {
	defer close(c.done)
	defer c.frameSink.close()

	pcm := make([]byte, len(c.buffer)*2)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}
		if err := c.stream.Read(); err != nil {
			select {
			case <-c.stopCh:
				return
			default:
				continue
			}
		}
		for i, sample := range c.buffer {
			binary.LittleEndian.PutUint16(pcm[2*i:], uint16(sample))
		}
		if _, err := c.Write(pcm); err != nil {
			return
		}
	}
}

func (c *portAudioCapture) Device() Device { return portAudioDevice }

func (c *portAudioCapture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopCh)
		err = c.stream.Stop()
		<-c.done
		if cerr := c.stream.Close(); err == nil {
			err = cerr
		}
		_ = portaudio.Terminate()
	})
	return err
}
