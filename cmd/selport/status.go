package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/selport/internal/message"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show daemon state",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStatus() },
	}
	addConfigFlag(cmd)

	return cmd
}

func runStatus() error {
	resp, err := roundTrip(&message.Message{Type: message.TypeStatus})
	if err != nil {
		return err
	}
	if resp.Status == nil {
		return fmt.Errorf("daemon returned no status")
	}

	st := resp.Status
	fmt.Printf("backend:  %s\n", st.Backend)
	fmt.Printf("owns:     %v\n", st.Owns)
	if st.Offered != "" {
		fmt.Printf("offering: %s\n", st.Offered)
	}
	if st.Latest != "" {
		fmt.Printf("cached:   %s (%d bytes)\n", st.Latest, st.LatestSize)
	}
	return nil
}
