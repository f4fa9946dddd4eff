/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/allbin/uart-test/internal/config"
	"github.com/allbin/uart-test/internal/harness"
	"github.com/allbin/uart-test/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app is the state shared by every subcommand of one root command
type app struct {
	reg     *harness.Registry
	v       *viper.Viper
	cfgFile string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCmd assembles the uart-test command tree around reg
func NewRootCmd(reg *harness.Registry) *cobra.Command {
	a := &app{reg: reg, v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "uart-test",
		Short: "Exercise a UART link against a peer running the same tool",
		Long: `uart-test runs small test protocols over a serial line.

Each protocol opens a TTY and talks to a second instance of uart-test on the
other end of the link: one side initiates (sender, client) and the other
responds (receiver, server).

Examples:
  uart-test ping -s /dev/ttyS1                 # responder
  uart-test ping -n 4096 -c SEND_RECV /dev/ttyS0
  uart-test rts_control -r /dev/ttyUSB0
  uart-test selftest iovec                     # both roles over an in-memory link`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("log-file", "", "write logs to a rotated file instead of stderr")
	flags.Int("baud", harness.DefaultBaudRate, "line rate used when opening a device")
	flags.Duration("read-timeout", 0, "per-read timeout, 0 blocks until data arrives")

	bindings := map[string]string{
		"logging.level":       "log-level",
		"logging.format":      "log-format",
		"logging.output":      "log-file",
		"serial.baud_rate":    "baud",
		"serial.read_timeout": "read-timeout",
	}
	if err := bindFlags(a.v, flags, bindings); err != nil {
		panic(err)
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", harness.ErrConfig, err)
	})

	rootCmd.AddCommand(
		newPingCmd(a),
		newRTSControlCmd(a),
		newIOVecCmd(a),
		newAlignmentCmd(a),
		newSetBaudCmd(a),
		newSendBreakCmd(a),
		newWaitBreakCmd(a),
		newSelftestCmd(a),
		newListCmd(),
		newSignalsCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("%w: %w", harness.ErrConfig, err)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("%w: %w", harness.ErrConfig, err)
	}

	a.cfg = cfg
	a.log = log.With(zap.String("command", cmd.Name()))
	return nil
}

// bindFlags binds each config key to the named flag
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s to %s: %w", name, key, err)
		}
	}
	return nil
}

// ttyArg accepts exactly one device path
func ttyArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s needs exactly one tty device, got %d arguments",
			harness.ErrConfig, cmd.Name(), len(args))
	}
	return nil
}
