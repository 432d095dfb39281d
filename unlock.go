package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-index/internal/cache"
	"github.com/tonimelisma/onedrive-index/internal/config"
	"github.com/tonimelisma/onedrive-index/internal/index"
	"github.com/tonimelisma/onedrive-index/internal/session"
)

type unlockOptions struct {
	path     string
	password string
	ttl      time.Duration
}

func newUnlockCmd() *cobra.Command {
	var opts unlockOptions

	cmd := &cobra.Command{
		Use:   "unlock <key-id>",
		Short: "Store a password for a protected subtree in the session",
		Long: `Store a password for a protected subtree in the current session. The
password is read from --password or, if absent, from the first line of
standard input. A wrong password is still stored and reported as a mismatch.

Without --session or ONEDRIVE_INDEX_SESSION a new session ID is minted and
printed; export it to reuse the credential. Sessions only outlive the process
with the sqlite or redis cache backends.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(cmd.Context(), mustCLIContext(cmd.Context()), args[0], opts, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&opts.path, "path", "", "path being unlocked, echoed in a retry prompt")
	cmd.Flags().StringVar(&opts.password, "password", "", "password (read from stdin when empty)")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "credential lifetime (0 = protect.credential_ttl)")

	return cmd
}

func runUnlock(ctx context.Context, cc *CLIContext, keyID string, opts unlockOptions, stdin io.Reader) error {
	password := opts.password
	if password == "" {
		var err error

		password, err = readPassword(stdin)
		if err != nil {
			return err
		}
	}

	if cc.SessionID == "" {
		cc.SessionID = session.NewID()
		fmt.Fprintf(os.Stderr, "New session: %s\nexport %s=%s\n", cc.SessionID, config.EnvSession, cc.SessionID)

		if cc.Cfg.Cache.Backend == cache.BackendMemory {
			cc.Statusf("Warning: the memory cache forgets this session when the process exits.\n")
		}
	}

	cred, err := cc.Service.SubmitProtectedPassword(ctx, cc.SessionID, keyID, password, opts.ttl,
		index.PasswordPrompt{Route: "unlock", RequestPath: opts.path, KeyID: keyID})
	if err != nil {
		return err
	}

	cc.Statusf("Unlocked %q until %s.\n", keyID, cred.ExpiresAt.Local().Format(time.DateTime))

	return nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given")
	}

	return line, nil
}
