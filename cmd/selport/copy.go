package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/selport/internal/format"
	"go.klb.dev/selport/internal/message"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy stdin to the selection (like xclip -i)",
		Long: `Reads stdin and hands it to the running selport daemon, which claims
ownership of the PRIMARY and CLIPBOARD selections and serves the data to
requesting clients.

  selport copy < notes.txt
  selport copy --mime image/png < screenshot.png`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runCopy(v) },
	}

	f := cmd.Flags()
	f.String("mime", "text/plain", "MIME type of the data being copied")
	addConfigFlag(cmd)

	return cmd
}

func runCopy(v *viper.Viper) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	mime := v.GetString("mime")
	f := format.FromMIME(mime)
	if f == format.None {
		return fmt.Errorf("unsupported MIME type %q", mime)
	}

	resp, err := roundTrip(&message.Message{
		Type:  message.TypeCopy,
		Items: []message.Item{message.NewItem(f, data)},
	})
	if err != nil {
		return err
	}
	if resp.Type == message.TypeError {
		return fmt.Errorf("daemon: %s", resp.Error)
	}
	return nil
}
