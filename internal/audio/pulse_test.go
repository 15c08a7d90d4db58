package audio

import (
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameSinkCutsFramesTracksLevelAndFlushes(t *testing.T) {
	size := chunkBytes(DefaultSampleRate)
	require.Equal(t, 640, size)
	sink := newFrameSink(size)

	_, ok := sink.Level()
	require.False(t, ok)

	input := constantPCM(size+100, 16384)
	n, err := sink.Write(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), sink.BytesCaptured())

	first := <-sink.Chunks()
	require.Len(t, first, size)

	level, ok := sink.Level()
	require.True(t, ok)
	require.InDelta(t, 0.5, level, 1e-3)

	sink.close()
	remaining, ok := <-sink.Chunks()
	require.True(t, ok)
	require.Len(t, remaining, 100)

	_, ok = <-sink.Chunks()
	require.False(t, ok)

	_, ok = sink.Level()
	require.False(t, ok)
	sink.close()
}

func TestFrameSinkRejectsWritesAfterClose(t *testing.T) {
	sink := newFrameSink(640)
	sink.close()

	n, err := sink.Write([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, int64(0), sink.BytesCaptured())
}

func TestFrameSinkDropsFramesWhenConsumerStalls(t *testing.T) {
	sink := newFrameSink(2)
	input := constantPCM(2*200, 100)

	n, err := sink.Write(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Len(t, sink.out, cap(sink.out))
	require.Equal(t, int64(len(input)), sink.BytesCaptured())
}

func TestPulseStreamStopIsIdempotent(t *testing.T) {
	stream := newPulseStream(Device{ID: "mic"}, 4)
	_, err := stream.Write([]byte{1, 0, 2})
	require.NoError(t, err)

	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Stop())

	rest, ok := <-stream.Chunks()
	require.True(t, ok)
	require.Equal(t, []byte{1, 0, 2}, rest)
	_, ok = <-stream.Chunks()
	require.False(t, ok)
	require.Equal(t, "mic", stream.Device().ID)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Backend: "alsa"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown audio backend "alsa"`)
	require.Contains(t, Backends(), "pulse")
}

func TestRegisterBackend(t *testing.T) {
	var got Config
	RegisterBackend("Fake", func(_ context.Context, cfg Config) (Stream, Selection, error) {
		got = cfg
		return newPulseStream(Device{ID: "fake"}, 2), Selection{Device: Device{ID: "fake"}}, nil
	})

	stream, selection, err := Open(context.Background(), Config{Backend: "fake", Input: "x"})
	require.NoError(t, err)
	require.Equal(t, "fake", selection.Device.ID)
	require.Equal(t, "fake", stream.Device().ID)
	require.Equal(t, DefaultSampleRate, got.SampleRate)
	require.NoError(t, stream.Stop())
}

func constantPCM(size int, sample int16) []byte {
	out := make([]byte, size)
	for i := 0; i+1 < size; i += 2 {
		binary.LittleEndian.PutUint16(out[i:], uint16(sample))
	}
	return out
}
