package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 115200, config.BaudRate)
	assert.Equal(t, 8, config.DataBits)
	assert.Equal(t, 1, config.StopBits)
	assert.Equal(t, ParityNone, config.Parity)
	assert.Equal(t, FlowControlNone, config.FlowControl)
	assert.Zero(t, config.ReadTimeout, "reads block by default")
	assert.True(t, config.FlushOnOpen)
	assert.False(t, config.BreakMarking)
	assert.Nil(t, config.InitialRTS)
	assert.Nil(t, config.InitialDTR)
}

func TestFunctionalOptions(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, WithBaudRate(9600)(&config))
	require.NoError(t, WithDataBits(7)(&config))
	require.NoError(t, WithStopBits(2)(&config))
	require.NoError(t, WithParity(ParityEven)(&config))
	require.NoError(t, WithFlowControl(FlowControlRTSCTS)(&config))
	require.NoError(t, WithSyncWrite()(&config))
	require.NoError(t, WithBreakMarking()(&config))
	require.NoError(t, WithoutInputFlush()(&config))

	assert.Equal(t, 9600, config.BaudRate)
	assert.Equal(t, 7, config.DataBits)
	assert.Equal(t, 2, config.StopBits)
	assert.Equal(t, ParityEven, config.Parity)
	assert.Equal(t, FlowControlRTSCTS, config.FlowControl)
	assert.Equal(t, WriteModeSynced, config.WriteMode)
	assert.True(t, config.BreakMarking)
	assert.False(t, config.FlushOnOpen)
}

func TestWithBaudRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    int
		wantErr error
	}{
		{"standard", 115200, nil},
		{"non-standard", 123456, nil},
		{"low", 50, nil},
		{"zero", 0, ErrInvalidBaudRate},
		{"negative", -9600, ErrInvalidBaudRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			err := WithBaudRate(tt.rate)(&config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 115200, config.BaudRate, "rejected rate must not be stored")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rate, config.BaudRate)
		})
	}
}

func TestInvalidFraming(t *testing.T) {
	config := DefaultConfig()

	assert.ErrorIs(t, WithDataBits(9)(&config), ErrInvalidConfig)
	assert.ErrorIs(t, WithDataBits(4)(&config), ErrInvalidConfig)
	assert.ErrorIs(t, WithStopBits(3)(&config), ErrInvalidConfig)
	assert.ErrorIs(t, WithStopBits(0)(&config), ErrInvalidConfig)
	assert.Equal(t, 8, config.DataBits)
	assert.Equal(t, 1, config.StopBits)
}

func TestWithReadTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"0ms (blocking)", 0, false},
		{"100ms (valid)", 100 * time.Millisecond, false},
		{"500ms (valid)", 500 * time.Millisecond, false},
		{"2500ms (valid)", 2500 * time.Millisecond, false},
		{"25500ms (max)", 25500 * time.Millisecond, false},
		{"150ms (not multiple of 100ms)", 150 * time.Millisecond, true},
		{"250ns (not multiple of 100ms)", 250 * time.Nanosecond, true},
		{"25600ms (exceeds max)", 25600 * time.Millisecond, true},
		{"-100ms (negative)", -100 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			err := WithReadTimeout(tt.timeout)(&config)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.timeout, config.ReadTimeout)
		})
	}
}

func TestInitialModemLines(t *testing.T) {
	for _, state := range []bool{true, false} {
		config := DefaultConfig()
		require.NoError(t, WithInitialRTS(state)(&config))
		require.NoError(t, WithInitialDTR(!state)(&config))

		require.NotNil(t, config.InitialRTS)
		require.NotNil(t, config.InitialDTR)
		assert.Equal(t, state, *config.InitialRTS)
		assert.Equal(t, !state, *config.InitialDTR)
	}
}
