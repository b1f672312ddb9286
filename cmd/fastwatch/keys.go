package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeysCommand(opts *rootOptions) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys for the HTTP transport",
	}

	var description string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an API key for the user and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				token, err := newToken()
				if err != nil {
					return err
				}
				if err := a.keys.Create(cmd.Context(), a.userID, token, description); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&description, "description", "", "Note stored with the key")
	keysCmd.AddCommand(addCmd)
	return keysCmd
}

func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "fw_" + hex.EncodeToString(buf), nil
}
