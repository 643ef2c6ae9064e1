package cmd

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-grc-client/session"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
	loginType     string
	cookieSession bool
	refreshForce  bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the login session",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the token pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if loginUsername == "" {
			return errors.New("--username is required")
		}
		password := loginPassword
		if password == "" {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.Wrap(err, "read password")
			}
			password = strings.TrimRight(line, "\r\n")
		}

		login := a.manager.Login
		if cookieSession {
			login = a.manager.SessionLogin
		}
		result, err := login(cmd.Context(), loginUsername, password, loginType)
		if err != nil {
			return err
		}
		a.manager.WaitPrefetch()

		name := result.User.FullName()
		if name == "" {
			name = result.User.UserName
		}
		pterm.Success.Printf("Logged in as %s\n", name)
		if !cookieSession && !result.LicenseVerified {
			pterm.Warning.Println("License is not verified")
		}
		if result.ConsentRequired {
			pterm.Warning.Println("Consent is required before gated actions, see 'grcctl consent check'")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session and clear local credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if cookieSession {
			a.manager.SessionLogout(cmd.Context())
		} else {
			a.manager.Logout(cmd.Context())
		}
		pterm.Success.Println("Logged out")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := getApp(ctx)
		if err != nil {
			return err
		}

		pterm.DefaultSection.Println("Authentication Status")
		if !a.manager.IsAuthenticated(ctx) {
			pterm.Info.Println("Not logged in")
			return nil
		}
		user, err := a.manager.CurrentUser(ctx)
		if err != nil {
			return err
		}
		accessExp, _ := a.store.Get(ctx, storage.KeyAccessTokenExpires)
		refreshExp, _ := a.store.Get(ctx, storage.KeyRefreshTokenExpires)
		claimExp := "-"
		if token, err := a.manager.AccessToken(ctx); err == nil {
			if exp, ok := session.ExpiryFromToken(token); ok {
				claimExp = exp.Local().Format(time.RFC1123)
			}
		}

		table := pterm.TableData{
			{"FIELD", "VALUE"},
			{"State", a.manager.State().String()},
			{"User", fmt.Sprintf("%s <%s>", user.FullName(), user.Email)},
			{"User ID", fmt.Sprint(user.UserID)},
			{"Access token expires", accessExp},
			{"Refresh token expires", refreshExp},
			{"Access token exp claim", claimExp},
			{"Failed refreshes", fmt.Sprint(a.manager.FailedRefreshes())},
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()

		pterm.DefaultSection.Println("Cached Data")
		data := pterm.TableData{{"DATA", "FETCHED"}}
		for _, c := range a.caches {
			flag, _ := a.store.Get(ctx, storage.DataFetchedKey(c.Name()))
			data = append(data, []string{c.Name(), flag})
		}
		fetchedAt, _ := a.store.Get(ctx, storage.KeyDataFetchTime)
		data = append(data, []string{"last fetch", fetchedAt})
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token",
	Long:  "Refreshes the access token when it is close to expiry, or always with --force.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if !a.manager.IsAuthenticated(ctx) {
			return errors.New("not logged in")
		}
		before := a.manager.FailedRefreshes()
		if refreshForce {
			if !a.manager.RefreshAccessToken(ctx) {
				return errors.Errorf("refresh failed (%d consecutive failures)", a.manager.FailedRefreshes())
			}
			pterm.Success.Println("Access token refreshed")
			return nil
		}
		if a.manager.CheckAndRefreshToken(ctx) {
			pterm.Success.Println("Access token refreshed")
			return nil
		}
		if after := a.manager.FailedRefreshes(); after > before || !a.manager.IsAuthenticated(ctx) {
			return errors.Errorf("refresh failed (%d consecutive failures)", after)
		}
		pterm.Info.Println("Access token is still fresh, nothing to do")
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Ask the backend whether the access token is valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if !a.manager.VerifyToken(cmd.Context()) {
			return errors.New("token is not valid")
		}
		pterm.Success.Println("Token is valid")
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the current access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		token, err := a.manager.TokenSource(cmd.Context()).Token()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username or email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (read from stdin when empty)")
	loginCmd.Flags().StringVar(&loginType, "type", session.LoginTypeUsername, "login type: username or email")
	loginCmd.Flags().BoolVar(&cookieSession, "session", false, "use a cookie session instead of JWT")
	logoutCmd.Flags().BoolVar(&cookieSession, "session", false, "end a cookie session instead of JWT")
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "refresh even when the token is not close to expiry")

	authCmd.AddCommand(loginCmd, logoutCmd, statusCmd, refreshCmd, verifyCmd, tokenCmd)
}
