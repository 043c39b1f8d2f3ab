package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"postdesk/cmd/postdesk/ui"
	"postdesk/internal/auth/session"
)

var (
	loginEmail    string
	loginPassword string

	registerUsername string
	registerEmail    string
	registerPassword string
	registerConfirm  string
)

// loginCmd establishes a session
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session",
	Long: `Logs in with an email and password. The password is prompted for
without echo when --password is omitted.

Example:
  postdesk login --email alice@example.com`,
	RunE: withApp(runLogin),
}

// registerCmd creates an account and logs in with it
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	Long: `Creates an account, then logs in with the same email and password.
Passwords must match and be at least 6 characters long.`,
	RunE: withApp(runRegister),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE:  withApp(runLogout),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE:  withApp(runWhoami),
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")
	_ = loginCmd.MarkFlagRequired("email")

	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "Username (required)")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "Account email (required)")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Password (prompted when omitted)")
	registerCmd.Flags().StringVar(&registerConfirm, "confirm", "", "Password confirmation (prompted when omitted)")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("email")
}

// promptIfEmpty asks for a hidden value when v is empty.
func promptIfEmpty(cmd *cobra.Command, a *app, v, label string) (string, error) {
	if v != "" {
		return v, nil
	}
	return ui.PromptSecret(label, cmd.InOrStdin(), cmd.OutOrStdout(), a.styles)
}

func runLogin(a *app, cmd *cobra.Command, args []string) error {
	password, err := promptIfEmpty(cmd, a, loginPassword, "Password")
	if err != nil {
		return err
	}

	logger.Debug("logging in", zap.String("email", loginEmail))
	if err := a.sessions.Login(commandContext(cmd), loginEmail, password); err != nil {
		return err
	}

	s := a.sessions.Current()
	fmt.Fprintln(cmd.OutOrStdout(), a.styles.Success.Render("Logged in as "+s.User.DisplayName()))
	return nil
}

func runRegister(a *app, cmd *cobra.Command, args []string) error {
	password, err := promptIfEmpty(cmd, a, registerPassword, "Password")
	if err != nil {
		return err
	}
	confirm, err := promptIfEmpty(cmd, a, registerConfirm, "Confirm password")
	if err != nil {
		return err
	}
	if err := session.ValidateRegistration(password, confirm); err != nil {
		return err
	}

	logger.Debug("registering", zap.String("username", registerUsername), zap.String("email", registerEmail))
	if err := a.sessions.Register(commandContext(cmd), registerUsername, registerEmail, password, confirm); err != nil {
		return err
	}

	s := a.sessions.Current()
	fmt.Fprintln(cmd.OutOrStdout(), a.styles.Success.Render("Account created; logged in as "+s.User.DisplayName()))
	return nil
}

func runLogout(a *app, cmd *cobra.Command, args []string) error {
	if err := a.sessions.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(a *app, cmd *cobra.Command, args []string) error {
	if _, err := a.requireSession(commandContext(cmd)); err != nil {
		return err
	}
	// Let a pending current-user fetch land before printing.
	a.sessions.Wait()
	s := a.sessions.Current()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, a.styles.Title.Render(s.User.DisplayName()))
	if name := s.User.Username(); name != "" {
		fmt.Fprintf(out, "%s %s\n", a.styles.Muted.Render("username:"), name)
	}
	if email := s.User.Email(); email != "" {
		fmt.Fprintf(out, "%s %s\n", a.styles.Muted.Render("email:   "), email)
	}
	if id, ok := s.User.ID(); ok {
		fmt.Fprintf(out, "%s %s\n", a.styles.Muted.Render("id:      "), strconv.FormatInt(id, 10))
	}
	return nil
}
