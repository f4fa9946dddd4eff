package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/allbin/uart-test/internal/harness"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd(harness.DefaultRegistry())
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--log-level", "warn"}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSelftestLoopback(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"ping send", []string{"selftest", "ping", "-n", "512"}},
		{"ping send_recv", []string{"selftest", "ping", "-n", "2048", "-c", "SEND_RECV"}},
		{"rts_control", []string{"selftest", "rts_control", "-t", "200ms"}},
		{"iovec", []string{"selftest", "iovec"}},
		{"alignment", []string{"selftest", "alignment"}},
		{"set_baud", []string{"selftest", "set_baud", "-b", "57600"}},
		{"sendbreak", []string{"selftest", "sendbreak"}},
		{"waitbreak", []string{"selftest", "waitbreak", "-t", "2s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, "initiator")
			assert.Contains(t, out, "responder")
			assert.Contains(t, out, "loopback:a")
			assert.NotContains(t, out, "✗")
		})
	}
}

func TestSelftestPairsBreakProtocols(t *testing.T) {
	out, _, err := execute(t, "selftest", "sendbreak")
	require.NoError(t, err)
	assert.Contains(t, out, "sendbreak")
	assert.Contains(t, out, "waitbreak")
	assert.Contains(t, out, "break received after 0 data bytes")
}

func TestSelftestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown protocol", []string{"selftest", "ping6"}},
		{"no protocol", []string{"selftest"}},
		{"one device", []string{"selftest", "ping", "--devices", "/dev/ttyS0"}},
		{"bad command", []string{"selftest", "ping", "-c", "RECV"}},
		{"lower case command", []string{"selftest", "ping", "-c", "send_recv"}},
		{"zero ping count", []string{"selftest", "ping", "-n", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, harness.ConfigError, harness.OutcomeOf(err))
			assert.Equal(t, int(unix.EINVAL), harness.ExitStatus(err))
		})
	}
}

func TestProtocolCommandUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing tty", []string{"iovec"}},
		{"two ttys", []string{"alignment", "/dev/ttyS0", "/dev/ttyS1"}},
		{"both roles", []string{"rts_control", "-r", "-s", "/dev/ttyS0"}},
		{"unknown flag", []string{"ping", "--bogus", "/dev/ttyS0"}},
		{"bad ping command", []string{"ping", "-c", "PING", "/dev/ttyS0"}},
		{"lower case ping command", []string{"ping", "-c", "send", "/dev/ttyS0"}},
		{"zero baud flag", []string{"--baud", "0", "iovec", "/dev/ttyS0"}},
		{"bad log level flag", []string{"--log-level", "loud", "iovec", "/dev/ttyS0"}},
		{"bad config file", []string{"--config", "/nonexistent/uart-test.yaml", "iovec", "/dev/ttyS0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, harness.ErrConfig)
			assert.False(t, Reported(err))
		})
	}
}

func TestProtocolCommandMissingDevice(t *testing.T) {
	_, stderr, err := execute(t, "iovec", "-r", "/dev/ttyNOSUCHDEVICE99")
	require.Error(t, err)

	assert.True(t, Reported(err))
	assert.Equal(t, int(unix.ENOENT), harness.ExitStatus(err))
	assert.Contains(t, stderr, "cannot open /dev/ttyNOSUCHDEVICE99")
	assert.Contains(t, stderr, "uart-test list")
}

func TestBindFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("baud", 9600, "")
	require.NoError(t, flags.Parse([]string{"--baud", "57600"}))

	v := viper.New()
	require.NoError(t, bindFlags(v, flags, map[string]string{"serial.baud_rate": "baud"}))
	assert.Equal(t, 57600, v.GetInt("serial.baud_rate"))

	err := bindFlags(v, flags, map[string]string{"serial.read_timeout": "read-timeout"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--read-timeout")
}

func TestRoleFromFlags(t *testing.T) {
	role, err := roleFromFlags(false, false)
	require.NoError(t, err)
	assert.Equal(t, harness.Initiator, role)

	role, err = roleFromFlags(true, false)
	require.NoError(t, err)
	assert.Equal(t, harness.Responder, role)

	role, err = roleFromFlags(false, true)
	require.NoError(t, err)
	assert.Equal(t, harness.Initiator, role)

	_, err = roleFromFlags(true, true)
	assert.ErrorIs(t, err, harness.ErrConfig)
}

func TestFilterPorts(t *testing.T) {
	ports := []string{"/dev/ttyACM0", "/dev/ttyAMA0", "/dev/ttyS0", "/dev/ttySAC1", "/dev/ttyUSB3"}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", ports},
		{"all", ports},
		{"usb", []string{"/dev/ttyACM0", "/dev/ttyUSB3"}},
		{"USB", []string{"/dev/ttyACM0", "/dev/ttyUSB3"}},
		{"standard", []string{"/dev/ttyS0"}},
		{"arm", []string{"/dev/ttyAMA0"}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			assert.Equal(t, tt.want, filterPorts(ports, tt.filter))
		})
	}
}

func TestFormatThroughput(t *testing.T) {
	assert.Equal(t, "-", formatThroughput(100, 0))
	assert.Equal(t, "500 B/s", formatThroughput(500, time.Second))
	assert.Equal(t, "2.00 KiB/s", formatThroughput(2048, time.Second))
	assert.Equal(t, "1.50 MiB/s", formatThroughput(3<<20, 2*time.Second))
}

func TestPrintReport(t *testing.T) {
	var out, errOut bytes.Buffer
	report := harness.Report{
		Protocol: "ping",
		Role:     harness.Responder,
		Bytes:    1024,
		Transfers: []harness.TransferResult{
			{Direction: harness.Receive, Bytes: 1024, Elapsed: time.Second},
		},
	}

	printReport(&out, &errOut, "/dev/ttyS1", report, nil)
	assert.Contains(t, out.String(), "ping (responder) on /dev/ttyS1")
	assert.Contains(t, out.String(), "1024 bytes in 1s (1.00 KiB/s)")
	assert.Empty(t, errOut.String())

	out.Reset()
	printReport(&out, &errOut, "/dev/ttyS1", report, &harness.MismatchError{Detail: "byte 3 is 0x62"})
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "mismatch")
	assert.Contains(t, errOut.String(), "byte 3 is 0x62")
}
