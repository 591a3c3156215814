package commands

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"offrecord/internal/app"
)

var (
	home       string
	passphrase string
	appCtx     *app.Wire

	relayURL string
	username string
	verbose  bool
	timeout  time.Duration
)

func Execute() error {
	root := &cobra.Command{
		Use:           "offrecord",
		Short:         "Off-the-record chat with deniable authentication",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".offrecord")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			logOut := io.Discard
			if verbose {
				logOut = cmd.ErrOrStderr()
			}
			w, err := app.NewWire(app.Config{
				Home:     home,
				RelayURL: relayURL,
				Username: username,
				Logger:   log.New(logOut, "", log.Ltime),
			})
			if err != nil {
				return err
			}
			appCtx = w
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.offrecord)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity key")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&username, "username", "", "your mailbox name on the relay")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log protocol decisions to stderr")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for each relay request")

	root.AddCommand(initCmd(), fingerprintCmd(), talkCmd(), trustCmd(), verifyCmd())
	return root.Execute()
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}
