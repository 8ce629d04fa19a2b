package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"togglsync/internal/gitlab"
	"togglsync/internal/toggl"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify Toggl and GitLab connectivity and credentials",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := cmd.Context()
	ok := true

	togglClient := toggl.NewClient(cfg.Toggl.APIToken, cfg.Toggl.WorkspaceID, log)
	if user, err := togglClient.Me(ctx); err != nil {
		fmt.Printf("✗ Toggl: %v\n", err)
		ok = false
	} else {
		fmt.Printf("✓ Toggl: authenticated as %s\n", user.Fullname)
		if ws, err := togglClient.Workspace(ctx); err != nil {
			fmt.Printf("✗ Toggl workspace %d: %v\n", cfg.Toggl.WorkspaceID, err)
			ok = false
		} else {
			fmt.Printf("✓ Toggl workspace: %s\n", ws.Name)
		}
	}

	var gitlabOpts []gitlab.Option
	if cfg.GitLab.TokenType == "oauth" {
		gitlabOpts = append(gitlabOpts, gitlab.WithOAuthToken())
	}
	gitlabClient := gitlab.NewClient(ctx, cfg.GitLab.URL, cfg.GitLab.Token, cfg.GitLab.ProjectID, log, gitlabOpts...)
	if user, err := gitlabClient.CurrentUser(ctx); err != nil {
		fmt.Printf("✗ GitLab: %v\n", err)
		ok = false
	} else {
		fmt.Printf("✓ GitLab: authenticated as %s\n", user.Username)
		if proj, err := gitlabClient.Project(ctx); err != nil {
			fmt.Printf("✗ GitLab project %d: %v\n", cfg.GitLab.ProjectID, err)
			ok = false
		} else {
			fmt.Printf("✓ GitLab project: %s\n", proj.PathWithNamespace)
		}
	}

	if !ok {
		os.Exit(1)
	}
	fmt.Println("\nAll connections verified.")
	return nil
}
