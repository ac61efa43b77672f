package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	keyFile string

	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Verify a Cloudflare API token and store it in a key file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd, keyFile)
		},
	}
)

func init() {
	home, _ := os.UserHomeDir()
	setupCmd.Flags().StringVarP(&keyFile, "key-file", "k", filepath.Join(home, ".cloudflare"), "path of the cloudflare API credentials file to create")
}

func runSetup(cmd *cobra.Command, path string) error {
	cmd.Println("Enter Cloudflare API Key:")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	key := string(bytekey)

	api, err := cloudflare.NewWithAPIToken(key)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	cmd.Println("verifying token...")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}
	cmd.Println("token verified successfully")

	if err := writeKey(path, key); err != nil {
		return err
	}
	cmd.Printf("token written to \"%s\"\n", path)
	return nil
}

func writeKey(path, key string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, key); err != nil {
		return fmt.Errorf("unable to write \"%s\": %w", path, err)
	}
	return nil
}
