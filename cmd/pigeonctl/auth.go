package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pigeon/cmd/internal/chatclient"
)

func init() {
	signupCmd.Flags().StringVar(&flagDisplayName, "display-name", "", "display name shown to other users")
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var flagDisplayName string

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("cannot read password: %w", err)
	}
	return string(b), nil
}

func storeCredentials(cfg *Config, creds chatclient.Credentials) error {
	cfg.Server.BaseURL = serverURL(cfg)
	cfg.Auth.Token = creds.Token
	cfg.Auth.UserID = creds.User.ID
	cfg.Auth.Username = creds.User.Username
	return saveConfig(cfg)
}

var signupCmd = &cobra.Command{
	Use:   "signup <username>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		client := chatclient.NewClient(serverURL(cfg), "")
		creds, err := client.Signup(cmd.Context(), args[0], flagDisplayName, password)
		if err != nil {
			return err
		}

		if err := storeCredentials(cfg, creds); err != nil {
			return err
		}

		color.Green("Account %s created and logged in.", creds.User.Username)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		client := chatclient.NewClient(serverURL(cfg), "")
		creds, err := client.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}

		if err := storeCredentials(cfg, creds); err != nil {
			return err
		}

		color.Green("Logged in as %s.", creds.User.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cfg.Auth.Token != "" {
			client := chatclient.NewClient(serverURL(cfg), cfg.Auth.Token)
			// Best effort: clear local state even if the server is down.
			if err := client.Logout(cmd.Context()); err != nil {
				color.Yellow("Server logout failed: %v", err)
			}
		}

		cfg.Auth = ConfigAuth{}
		if err := saveConfig(cfg); err != nil {
			return err
		}

		fmt.Println("Logged out.")
		return nil
	},
}
