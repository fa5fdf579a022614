package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

func loginCmd(flags *globalFlags) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := wire(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			username, password, err = promptCredentials(cmd.InOrStdin(), cmd.ErrOrStderr(), username, password)
			if err != nil {
				return err
			}
			if err := rt.core.Login(ctx, username, password); err != nil {
				return loginFailure(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged in")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when absent)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when absent)")
	return cmd
}

// loginFailure maps a login error to the message shown to the user.
func loginFailure(err error) error {
	var loginErr *model.LoginError
	if errors.As(err, &loginErr) && loginErr.Kind == model.ErrorKindLoginFailed {
		return errors.New(strings.ToLower(loginErr.Kind.Message()))
	}
	return fmt.Errorf("login failed: %w", err)
}

// promptCredentials asks for whichever of username and password is empty.
// The password is read without echo when in is a terminal.
func promptCredentials(in io.Reader, out io.Writer, username, password string) (string, string, error) {
	reader := bufio.NewReader(in)

	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	if password == "" {
		fmt.Fprint(out, "Password: ")
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			raw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return "", "", fmt.Errorf("read password: %w", err)
			}
			password = string(raw)
		} else {
			line, err := reader.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return "", "", fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
	}

	if username == "" || password == "" {
		return "", "", errors.New("username and password are required")
	}
	return username, password, nil
}

func logoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := wire(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.core.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a session credential is stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := wire(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			status := "not authenticated"
			if rt.core.IsAuthenticated(ctx) {
				status = "authenticated"
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}
