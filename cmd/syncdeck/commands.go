package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncdeck/pkg/metrics"
	"syncdeck/pkg/pathutil"
	"syncdeck/pkg/shared"
)

var (
	syncParallel bool
	syncHint     string
	watch        bool
)

var localCmd = &cobra.Command{
	Use:   "local [path]",
	Short: "List a local directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		local := application.Session.Local
		path := local.Current()
		if len(args) == 1 {
			path = args[0]
		}

		entries, err := local.Open(cmd.Context(), path)
		if err != nil {
			return err
		}
		term.ShowLocal(local.Current(), entries)
		return nil
	},
}

var remoteCmd = &cobra.Command{
	Use:   "remote [remote] [path]",
	Short: "List directories of a remote",
	Long: `List directories of a remote. Without arguments the session starts the
way the browser does: a single configured remote opens at its root, otherwise
the remembered remote and path are restored.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := application.Session
		browser := s.Remote

		if len(args) == 0 {
			if err := s.Start(cmd.Context()); err != nil {
				return err
			}
			browser.Wait()

			if browser.State().RemoteID == "" {
				term.RenderRemotes(s.Remotes())
				term.Printf("no remote to restore, pass one of the remotes above\n")
				return nil
			}
			printBreadcrumbs()
			return nil
		}

		path := pathutil.Root
		if len(args) == 2 {
			path = args[1]
		}

		if err := browser.Open(cmd.Context(), args[0], path); err != nil {
			return err
		}
		browser.Wait()
		printBreadcrumbs()
		return nil
	},
}

func printBreadcrumbs() {
	state := application.Session.Remote.State()
	labels := make([]string, 0)
	for _, crumb := range application.Session.Remote.Breadcrumbs() {
		labels = append(labels, crumb.Label)
	}
	term.Printf("%s: %s\n", state.RemoteID, joinCrumbs(labels))
}

var remotesCmd = &cobra.Command{
	Use:   "remotes",
	Short: "List configured remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := application.Session
		if err := s.RefreshRemotes(cmd.Context()); err != nil {
			return err
		}
		term.RenderRemotes(s.Remotes())
		return nil
	},
}

var deleteRemoteCmd = &cobra.Command{
	Use:   "delete-remote <name>",
	Short: "Delete a remote configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Session.DeleteRemote(cmd.Context(), args[0]); err != nil {
			return err
		}
		term.Printf("remote %s deleted\n", args[0])
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <source> <remote> <dest>",
	Short: "Start a sync job",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := application.Session
		if syncParallel && syncHint == "" {
			if suggestion := s.SuggestHint(args[0]); suggestion.Reason != "" {
				term.Printf("%s\n", suggestion.Reason)
			}
		}

		jobID, err := s.StartSync(cmd.Context(), shared.SyncRequest{
			SourcePath:      args[0],
			RemoteID:        args[1],
			DestPath:        args[2],
			UseParallelism:  syncParallel,
			PerformanceHint: syncHint,
		})
		if err != nil {
			return err
		}
		term.Printf("started job %s\n", jobID)

		if !watch {
			return nil
		}
		return followCurrent(cmd)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's progress, following it with --watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := application.Session
		if !watch {
			status, err := application.Jobs.JobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			term.RenderJobs([]shared.JobStatus{*status})
			return nil
		}

		s.Watch(args[0])
		return followCurrent(cmd)
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List sync jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := application.Session
		if !watch {
			return s.JobList.Refresh(cmd.Context())
		}

		s.WatchJobs()
		<-cmd.Context().Done()
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log <job-id>",
	Short: "Print a job's log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := application.Session.JobLog(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !res.Found {
			term.Printf("no log available for job %s\n", args[0])
			return nil
		}
		term.Printf("%s", res.Content)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a finished job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Session.DeleteJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		term.Printf("job %s deleted\n", args[0])
		return nil
	},
}

var hintCmd = &cobra.Command{
	Use:   "hint <source>",
	Short: "Suggest a chunk size for a source path",
	Args:  cobra.ExactArgs(1),
	// No backend needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		suggestion := metrics.SuggestPerformanceHint(args[0])
		term.Printf("%s", suggestion.Hint)
		if suggestion.Reason != "" {
			term.Printf("  (%s)", suggestion.Reason)
		}
		term.Printf("\n")
		return nil
	},
}

// followCurrent blocks until the followed job finishes or the command is
// interrupted.
func followCurrent(cmd *cobra.Command) error {
	monitor := application.Session.Progress.Monitor()
	if monitor == nil {
		return fmt.Errorf("no job to follow")
	}

	select {
	case <-monitor.Done():
	case <-cmd.Context().Done():
	}
	return nil
}

func init() {
	syncCmd.Flags().BoolVar(&syncParallel, "parallel", false, "transfer in parallel chunks")
	syncCmd.Flags().StringVar(&syncHint, "hint", "", "chunk size (8M, 16M, 32M, 64M, 128M); suggested from the file name when empty")
	syncCmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow progress until the job finishes")
	statusCmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until the job finishes")
	jobsCmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh the list until interrupted")

	rootCmd.AddCommand(localCmd, remoteCmd, remotesCmd, deleteRemoteCmd, syncCmd, statusCmd, jobsCmd, logCmd, deleteCmd, hintCmd)
}
