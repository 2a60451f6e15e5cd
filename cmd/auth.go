package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mcp-remote/internal/agent/oauth"
	"mcp-remote/internal/config"
	"mcp-remote/internal/coordination"
)

var authConfigDir string

// newAuthCmd creates the command group managing stored credentials.
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored OAuth credentials",
		Long: `Inspect or remove the OAuth tokens and client registrations mcp-remote
stores for each remote server.`,
	}
	cmd.PersistentFlags().StringVar(&authConfigDir, "config-dir", "", "Credentials directory (default $"+config.ConfigDirEnv+" or ~/.mcp-auth)")
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthCleanCmd())
	return cmd
}

func authFiles(serverURL string) (oauth.Files, error) {
	if err := config.ValidateServerURL(serverURL); err != nil {
		return oauth.Files{}, err
	}
	dir := authConfigDir
	if dir == "" {
		var err error
		if dir, err = config.DefaultConfigDir(); err != nil {
			return oauth.Files{}, err
		}
	}
	return oauth.NewFiles(dir, serverURL), nil
}

func newAuthCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <server-url>",
		Short: "Remove stored credentials for a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := authFiles(args[0])
			if err != nil {
				return err
			}
			if err := files.Clean(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed stored credentials for %s\n", args[0])
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <server-url>",
		Short: "Show stored credentials for a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := authFiles(args[0])
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{text.FgHiCyan.Sprint("ITEM"), text.FgHiCyan.Sprint("STATUS")})
			t.AppendRow(table.Row{"Server", args[0]})
			t.AppendRow(table.Row{"Directory", files.Dir})

			store := oauth.NewFileTokenStore(files.Tokens(), args[0])
			t.AppendRow(table.Row{"Token", tokenStatus(store.Stored(), time.Now())})

			info, err := oauth.LoadClientInfo(files.ClientInfo())
			switch {
			case err != nil:
				t.AppendRow(table.Row{"Client", text.FgRed.Sprint("unreadable")})
			case info == nil:
				t.AppendRow(table.Row{"Client", "not registered"})
			default:
				t.AppendRow(table.Row{"Client", fmt.Sprintf("%s (registered %s)", info.ClientID, info.RegisteredAt.Format(time.RFC3339))})
			}

			lock, err := coordination.ReadLock(files.Lock())
			if err == nil && lock != nil {
				t.AppendRow(table.Row{"Lock", fmt.Sprintf("pid %d on port %d", lock.PID, lock.Port)})
			}

			t.Render()
			return nil
		},
	}
}

func tokenStatus(tok *oauth.StoredToken, now time.Time) string {
	if tok == nil || tok.AccessToken == "" {
		return "none"
	}
	switch {
	case tok.Expiry.IsZero():
		return text.FgGreen.Sprint("valid (no expiry)")
	case tok.Expiry.After(now):
		return text.FgGreen.Sprintf("valid, expires in %s", tok.Expiry.Sub(now).Round(time.Second))
	case tok.RefreshToken != "":
		return text.FgYellow.Sprint("expired, refresh token available")
	default:
		return text.FgRed.Sprint("expired")
	}
}
