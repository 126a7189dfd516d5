package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/selport/internal/ipc"
	"go.klb.dev/selport/internal/message"
	"go.klb.dev/selport/internal/wire"
)

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Print the current selection to stdout (like xclip -o)",
		Long: `Retrieves the data the daemon has fetched from the current selection
owner and writes it to stdout.

If nothing matching --mime is held, nothing is printed (exit 0). To
retrieve an image:

  selport paste --mime image/png > screenshot.png`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runPaste(v) },
	}

	f := cmd.Flags()
	f.String("mime", "text/plain", "preferred MIME type to output")
	addConfigFlag(cmd)

	return cmd
}

func runPaste(v *viper.Viper) error {
	resp, err := roundTrip(&message.Message{
		Type:   message.TypePaste,
		Accept: v.GetString("mime"),
	})
	if err != nil {
		return err
	}

	_, data, ok := resp.FirstItem(v.GetString("mime"))
	if !ok {
		// Requested type not present — exit 0, print nothing.
		return nil
	}
	_, err = os.Stdout.Write(data)
	return err
}

// roundTrip sends one request to the daemon and reads the response.
func roundTrip(msg *message.Message) (*message.Message, error) {
	conn, err := ipc.Dial()
	if err != nil {
		return nil, fmt.Errorf("no selport daemon running (%s): %w", ipc.SocketPath(), err)
	}
	defer conn.Close()

	wc := wire.New(conn)
	if err := wc.WriteMsg(msg); err != nil {
		return nil, fmt.Errorf("ipc send: %w", err)
	}
	resp, err := wc.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("ipc receive: %w", err)
	}
	return resp, nil
}
