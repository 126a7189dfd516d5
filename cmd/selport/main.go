// selport: X11 selection clipboard daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/selport/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "selport",
		Short: "X11 selection clipboard daemon",
		Long: `selport owns and consumes the PRIMARY and CLIPBOARD X11 selections,
speaking the full selection-transfer protocol (TARGETS negotiation, INCR
chunked transfers) on behalf of local tools.

Run "selport serve" once per display. Use "selport copy/paste/status/targets"
as CLI tools against the running daemon.

Config file search order (first found wins):
  /etc/selport/selport.toml
  $HOME/.config/selport/selport.toml
  path supplied via --config

All flags can be set via SELPORT_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newStatusCmd(),
		newTargetsCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("selport %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
