package harness

import (
	"testing"
	"time"

	"github.com/allbin/uart-test/internal/loopback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakMarkerScan(t *testing.T) {
	tests := []struct {
		name   string
		chunks [][]byte
		want   int // index of the chunk where the marker completes, -1 for none
	}{
		{"plain marker", [][]byte{{0xFF, 0x00, 0x00}}, 0},
		{"after data", [][]byte{{'h', 'i', 0xFF, 0x00, 0x00, 'x'}}, 0},
		{"split across reads", [][]byte{{'a', 0xFF}, {0x00}, {0x00}}, 2},
		{"escaped FF is data", [][]byte{{0xFF, 0xFF, 0x00, 0x00}}, -1},
		{"escaped FF then marker", [][]byte{{0xFF, 0xFF, 0xFF, 0x00, 0x00}}, 0},
		{"no marker", [][]byte{{0x00, 0x00, 0xFF, 0x01}}, -1},
		{"restart after partial", [][]byte{{0xFF, 0x00, 0xFF, 0x00, 0x00}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m breakMarker
			found := -1
			for i, chunk := range tt.chunks {
				if m.scan(chunk) >= 0 {
					found = i
					break
				}
			}
			assert.Equal(t, tt.want, found)
		})
	}
}

func TestBreakMarkerEndIndex(t *testing.T) {
	var m breakMarker
	assert.Equal(t, 5, m.scan([]byte{'h', 'i', 0xFF, 0x00, 0x00, 'x'}))
}

func TestSendAndWaitBreak(t *testing.T) {
	reg := DefaultRegistry()
	send, ok := reg.Lookup("sendbreak")
	require.True(t, ok)
	wait, ok := reg.PeerOf("sendbreak")
	require.True(t, ok)
	require.Equal(t, "waitbreak", wait.Name)

	ires, rres := runPair(t, send, wait,
		Options{Duration: 250 * time.Millisecond},
		Options{Timeout: 2 * time.Second})

	require.NoError(t, ires.err)
	require.NoError(t, rres.err)
	assert.Equal(t, "250ms", ires.report.Detail)
	assert.Equal(t, "break received after 0 data bytes", rres.report.Detail)
}

func TestWaitBreakSkipsData(t *testing.T) {
	a, b := loopback.Pipe()

	_, err := a.Write([]byte("noise"))
	require.NoError(t, err)
	require.NoError(t, a.SendBreak(0))

	report, err := lookup(t, "waitbreak").Execute(b, Options{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Bytes)
}

func TestWaitBreakTimeout(t *testing.T) {
	a, b := loopback.Pipe()

	_, err := a.Write([]byte("data but no break"))
	require.NoError(t, err)

	start := time.Now()
	_, err = lookup(t, "waitbreak").Execute(b, Options{Timeout: 50 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, Timeout, OutcomeOf(err))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitBreakPeerClosed(t *testing.T) {
	a, b := loopback.Pipe()
	require.NoError(t, a.Close())

	_, err := lookup(t, "waitbreak").Execute(b, Options{Timeout: time.Second})
	assert.Equal(t, IoError, OutcomeOf(err))
}

func TestBreakRequiresCapability(t *testing.T) {
	a, _ := loopback.Pipe()

	_, err := NewSendBreak(plainStream{a}, Options{})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewSendBreak(a, Options{Duration: -time.Second})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewWaitBreak(a, Options{Timeout: -time.Second})
	assert.ErrorIs(t, err, ErrConfig)

	w, err := NewWaitBreak(a, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultWaitBreakTimeout, w.timeout)
}
