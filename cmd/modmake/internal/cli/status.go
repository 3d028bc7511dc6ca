package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modmake/internal/snapshot"
)

var statusFlags struct {
	verbose bool
	json    bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which dependencies changed since the last build",
	Long: `Compares the files the last 'modmake build' depended on against their
current state.

Files that appeared at a path the build probed and did not find are listed as
new, since they can change how requests resolve.

The --verbose flag shows individual file changes (new, modified, deleted).
The --json flag outputs the result as JSON for scripting.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.verbose, "verbose", false,
		"Show individual file changes")
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for modmake status.
type StatusOutput struct {
	Stale         bool     `json:"stale"`
	StaleDirs     []string `json:"stale_dirs"`
	NewFiles      []string `json:"new_files,omitempty"`
	ModifiedFiles []string `json:"modified_files,omitempty"`
	DeletedFiles  []string `json:"deleted_files,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir, err := contextDir()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tracker := snapshot.NewTracker(dir)

	if !tracker.HasState() {
		if statusFlags.json {
			return outputJSON(cmd, StatusOutput{
				Stale:     true,
				StaleDirs: []string{"."},
				Error:     "no state found",
			})
		}
		fmt.Fprintln(out, "No state found. Run 'modmake build' to create initial state.")
		return nil
	}

	cs, err := tracker.Status(buildContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to detect changes: %w", err)
	}

	if statusFlags.json {
		return outputJSON(cmd, StatusOutput{
			Stale:         !cs.IsEmpty(),
			StaleDirs:     cs.AffectedDirs(),
			NewFiles:      cs.Added,
			ModifiedFiles: cs.Modified,
			DeletedFiles:  cs.Deleted,
		})
	}

	if cs.IsEmpty() {
		fmt.Fprintln(out, "Build is up to date")
		return nil
	}

	staleDirs := cs.AffectedDirs()
	fmt.Fprintf(out, "Changed directories (%d):\n", len(staleDirs))
	for _, d := range staleDirs {
		fmt.Fprintf(out, "  %s\n", d)
	}

	if statusFlags.verbose {
		printFiles := func(title, mark string, files []string) {
			if len(files) == 0 {
				return
			}
			fmt.Fprintf(out, "\n%s (%d):\n", title, len(files))
			for _, f := range files {
				fmt.Fprintf(out, "  %s %s\n", mark, f)
			}
		}
		printFiles("New files", "+", cs.Added)
		printFiles("Modified files", "~", cs.Modified)
		printFiles("Deleted files", "-", cs.Deleted)
	}

	fmt.Fprintln(out, "\nRun 'modmake build' to rebuild")
	return nil
}
