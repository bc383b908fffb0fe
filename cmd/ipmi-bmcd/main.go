// Command ipmi-bmcd runs the BMC Core as a standalone daemon: it binds one
// transport (Aspeed BT registers, an I2C slave callback bridge, or an
// in-process mock for smoke testing) to the default-device sink and, when
// --metrics-addr is set, serves Prometheus metrics over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/ipmibmc/bmccore/cmd/ipmi-bmcd/internal/app"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ipmi-bmcd",
		Short: "IPMI BT request router and response arbiter daemon",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	opts := app.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bind a transport and run the default-device sink until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Transport, "transport", opts.Transport, "transport to bind: aspeed, i2c, or mock")
	flags.StringVar(&opts.I2CAddr, "i2c-addr", opts.I2CAddr, "I2C slave device address, e.g. \"1-1010\" for bus 1 address 0x10 (i2c transport)")
	flags.StringVar(&opts.MMIODevice, "mmio-device", opts.MMIODevice, "memory device to mmap BT registers from (aspeed transport)")
	flags.Int64Var(&opts.MMIOOffset, "mmio-offset", opts.MMIOOffset, "byte offset of the BT register window (aspeed transport)")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", opts.MetricsAddr, "address to serve Prometheus metrics on, empty to disable")
	flags.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "debug, info, warn, or error")
	flags.IntVar(&opts.SinkDepth, "sink-depth", opts.SinkDepth, "default-device sink FIFO depth (rounded up to a power of two)")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(app.Version)
		},
	}
}
