package reviewctl

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// NewCommand returns the `review` subcommand: a terminal UI for approving
// and denying pending extension requests through the admin API.
func NewCommand() *cobra.Command {
	var (
		baseURL  string
		adminKey string
		grant    int
	)
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review pending session-extension requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if adminKey == "" {
				adminKey = os.Getenv("ADMIN_RESET_KEY")
			}
			if adminKey == "" {
				return fmt.Errorf("admin key required: pass --admin-key or set ADMIN_RESET_KEY")
			}
			model := NewModel(NewClient(baseURL, adminKey), grant)
			_, err := tea.NewProgram(model).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:5000", "server base URL")
	cmd.Flags().StringVar(&adminKey, "admin-key", "", "admin key (defaults to ADMIN_RESET_KEY)")
	cmd.Flags().IntVar(&grant, "grant", 10, "queries granted on approval")
	return cmd
}
