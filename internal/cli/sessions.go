// internal/cli/sessions.go
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/auth"
	"github.com/law-makers/catalog/internal/ui"
)

var sessionsYes bool

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved vendor cookie sessions",
	Long: `List and delete the cookie sessions saved after a successful login.

A session is saved when --session (or CATALOG_SESSION) is set and reused on the
next scrape so the vendor login form is skipped while the cookies are valid.
Sessions live in the OS keyring, or in ~/.catalog/sessions where no keyring is
available.`,
	Example: `  # List saved sessions
  catalog sessions list

  # Delete a session without prompting
  catalog sessions delete onyx --yes`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsDeleteCmd.Flags().BoolVarP(&sessionsYes, "yes", "y", false, "Do not ask for confirmation")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	return listSessions(cmd.OutOrStdout(), a.Sessions, time.Now())
}

func listSessions(w io.Writer, store *auth.Store, now time.Time) error {
	names, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(names) == 0 {
		fmt.Fprintf(w, "No saved sessions (%s backend).\n", store.Backend())
		fmt.Fprintln(w, ui.Dim("Run a scrape with --session=<name> and credentials to create one."))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Name", "URL", "Cookies", "Created", "Status"})
	for _, name := range names {
		session, err := store.Load(name)
		switch {
		case errors.Is(err, auth.ErrSessionNotFound):
			t.AppendRow(table.Row{name, "", "", "", ui.Warn("expired")})
			continue
		case err != nil:
			t.AppendRow(table.Row{name, "", "", "", ui.Error(err.Error())})
			continue
		}
		t.AppendRow(table.Row{
			session.Name,
			session.URL,
			len(session.Cookies),
			session.CreatedAt.Format(time.RFC822),
			sessionStatus(session, now),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func sessionStatus(s *auth.SessionData, now time.Time) string {
	if s.ExpiresAt.IsZero() {
		return ui.Success("valid")
	}
	return ui.Success(fmt.Sprintf("valid (%s left)", s.ExpiresAt.Sub(now).Round(time.Minute)))
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	name := args[0]

	if !sessionsYes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete session '%s'?", name)) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}

	if err := a.Sessions.Delete(name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Session '%s' deleted.\n", ui.Success("✓"), name)
	return nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
