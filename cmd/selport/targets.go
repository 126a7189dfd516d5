package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/selport/internal/message"
)

func newTargetsCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "targets",
		Short:   "Show the current selection owner's best offered format",
		Long:    `Prints the MIME type of the best format the current remote selection owner advertised, or "none" when no remote owner has been seen.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runTargets() },
	}
	addConfigFlag(cmd)

	return cmd
}

func runTargets() error {
	resp, err := roundTrip(&message.Message{Type: message.TypeTargets})
	if err != nil {
		return err
	}
	fmt.Println(resp.Target)
	return nil
}
