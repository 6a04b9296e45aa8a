package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hylla/minikan/internal/adapters/apiclient"
	"github.com/spf13/cobra"
)

// credentialFlags are shared by register and login.
type credentialFlags struct {
	name     string
	email    string
	password string
}

func newRegisterCommand(env *runtimeEnv) *cobra.Command {
	flags := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and save its access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.prompt(cmd, true); err != nil {
				return err
			}
			user, token, err := env.client.Register(cmd.Context(), flags.name, flags.email, flags.password)
			if err != nil {
				return userError(err)
			}
			if err := env.tokens.Save(token, env.now()); err != nil {
				return err
			}
			env.logger.Debug("registered", "user_id", user.ID, "token_path", env.tokens.Path())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "registered %s; logged in\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.name, "name", "", "display name")
	cmd.Flags().StringVar(&flags.email, "email", "", "account email")
	cmd.Flags().StringVar(&flags.password, "password", "", "account password (prompted when empty)")
	return cmd
}

func newLoginCommand(env *runtimeEnv) *cobra.Command {
	flags := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.prompt(cmd, false); err != nil {
				return err
			}
			user, token, err := env.client.Login(cmd.Context(), flags.email, flags.password)
			if err != nil {
				return userError(err)
			}
			if err := env.tokens.Save(token, env.now()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.email, "email", "", "account email")
	cmd.Flags().StringVar(&flags.password, "password", "", "account password (prompted when empty)")
	return cmd
}

func newLogoutCommand(env *runtimeEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.tokens.Clear(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoamiCommand(env *runtimeEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			user, err := env.client.Me(cmd.Context())
			if err != nil {
				if apiclient.IsUnauthorized(err) {
					_ = env.tokens.Clear()
				}
				return userError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
}

// prompt fills empty fields from stdin, one line each.
func (f *credentialFlags) prompt(cmd *cobra.Command, needName bool) error {
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()
	var err error
	if needName && strings.TrimSpace(f.name) == "" {
		if f.name, err = readPromptLine(reader, out, "name: "); err != nil {
			return err
		}
	}
	if strings.TrimSpace(f.email) == "" {
		if f.email, err = readPromptLine(reader, out, "email: "); err != nil {
			return err
		}
	}
	if f.password == "" {
		if f.password, err = readPromptLine(reader, out, "password: "); err != nil {
			return err
		}
	}
	return nil
}

// readPromptLine writes prompt and reads one trimmed line.
func readPromptLine(reader *bufio.Reader, output io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(output, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" && errors.Is(err, io.EOF) {
		return "", fmt.Errorf("missing %s", strings.TrimSuffix(prompt, ": "))
	}
	return line, nil
}
