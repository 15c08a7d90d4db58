package indicator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCueSamplesPresent(t *testing.T) {
	for _, kind := range []cueKind{cueListen, cueStop, cueSwitch, cueFault} {
		require.NotEmpty(t, cues[kind], kind)
	}
}

func TestSynthesizeCueInsertsGaps(t *testing.T) {
	one := tone{hz: 440, duration: 50 * time.Millisecond}
	got := synthesizeCue(one, one)
	require.Len(t, got, 2*samplesFor(50*time.Millisecond)+samplesFor(cueGap))
}

func TestSynthesizeToneDurationAndEnvelope(t *testing.T) {
	got := synthesizeTone(tone{hz: 440, duration: 100 * time.Millisecond})
	require.Len(t, got, samplesFor(100*time.Millisecond))
	require.Zero(t, got[0])
	require.Zero(t, got[len(got)-1])

	var peak int16
	for _, s := range got {
		if s > peak {
			peak = s
		}
	}
	require.InDelta(t, cueVolume*math.MaxInt16, float64(peak), 200)
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(tone{hz: 0, duration: 100 * time.Millisecond}))
	require.Empty(t, synthesizeTone(tone{hz: 440, duration: 0}))
}

func TestEmitCueRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := emitCue(ctx, cueListen)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}
