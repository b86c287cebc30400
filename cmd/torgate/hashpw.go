package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/torgate/internal/torrc"
)

// NewHashPasswordCmd creates the hash-password command.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash a control port password for HashedControlPassword",
		Long: `Hash-password prints the salted S2K hash tor expects in
HashedControlPassword, the same format as "tor --hash-password".

The password is read from the first line of standard input when no
argument is given, which keeps it out of the shell history.

Examples:
  torgate hash-password 's3cret'
  printf 's3cret\n' | torgate hash-password`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given on the command line or standard input")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hashed, err := torrc.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
}
