package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/memorygrid/internal/api/request"
	"github.com/mcoot/memorygrid/internal/api/response"
)

func newIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Identity management commands",
	}

	cmd.AddCommand(newIdentityGuestCmd())
	cmd.AddCommand(newIdentityRegisterCmd())
	cmd.AddCommand(newIdentityLoginCmd())
	cmd.AddCommand(newIdentityMeCmd())
	cmd.AddCommand(newIdentityLogoutCmd())

	return cmd
}

// storeGrant prints a fresh token and remembers it for later commands
func storeGrant(result response.AuthResponse, verb string) error {
	if err := cfg.SaveToken(result.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	apiClient.SetToken(result.Token)

	out := NewOutput(cfg.Output)
	out.Print(result)
	if cfg.Output != "json" {
		out.PrintMessage(fmt.Sprintf("\n%s. Token saved to %s", verb, cfg.TokenFile))
	}
	return nil
}

func newIdentityGuestCmd() *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Create a guest identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.CreateGuestRequest{
				DisplayName: displayName,
			}

			var result response.AuthResponse
			if err := apiClient.Post(cmd.Context(), "/api/v1/identities/guest", req, &result); err != nil {
				return err
			}
			return storeGrant(result, "Guest identity created")
		},
	}

	cmd.Flags().StringVarP(&displayName, "name", "n", "", "Display name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newIdentityRegisterCmd() *cobra.Command {
	var username, password, displayName string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a permanent identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.RegisterRequest{
				Username:    username,
				Password:    password,
				DisplayName: displayName,
			}

			var result response.AuthResponse
			if err := apiClient.Post(cmd.Context(), "/api/v1/identities/register", req, &result); err != nil {
				return err
			}
			return storeGrant(result, "Registered")
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	cmd.Flags().StringVarP(&displayName, "name", "n", "", "Display name (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newIdentityLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a registered identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.LoginRequest{
				Username: username,
				Password: password,
			}

			var result response.AuthResponse
			if err := apiClient.Post(cmd.Context(), "/api/v1/identities/login", req, &result); err != nil {
				return err
			}
			return storeGrant(result, "Logged in")
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newIdentityMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Identity
			if err := apiClient.Get(cmd.Context(), "/api/v1/identities/me", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newIdentityLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Post(cmd.Context(), "/api/v1/identities/logout", nil, nil); err != nil {
				return err
			}
			if err := cfg.SaveToken(""); err != nil {
				return fmt.Errorf("failed to clear token: %w", err)
			}

			NewOutput(cfg.Output).PrintMessage("Logged out")
			return nil
		},
	}
}
