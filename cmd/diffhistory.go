/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/josephgoksu/TaskWing/internal/difhist"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	diffHistoryService *difhist.DiffHistoryService
	diffHistoryBridge  *difhist.InMemoryChatStateBridge
	diffHistoryOnce    sync.Once
)

// diffHistoryServiceForCLI lazily builds the process-wide diff history
// service the way internal/config builds its lazily-initialized project
// context: constructed once, reused by every `taskwing diff` subcommand
// invocation within the same process.
func diffHistoryServiceForCLI() (*difhist.DiffHistoryService, *difhist.InMemoryChatStateBridge, error) {
	var err error
	diffHistoryOnce.Do(func() {
		diffHistoryBridge = difhist.NewInMemoryChatStateBridge()
		cfg := difhist.LoadConfig(viper.GetViper())
		diffHistoryService, err = difhist.NewService(afero.NewOsFs(), diffHistoryBridge, cfg, slog.Default())
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start diff history service: %w", err)
	}
	return diffHistoryService, diffHistoryBridge, nil
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Inspect and manage pending agent edits",
	Long: `diff exposes the diff history engine: the set of file changes the
coding assistant has made but the user has not yet accepted or rejected.`,
}

var diffFormat string

var diffStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the currently pending diff",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := diffHistoryServiceForCLI()
		if err != nil {
			return err
		}
		diffs := svc.GetDiff()

		if diffFormat == "yaml" {
			return dumpSessionDiffYAML(os.Stdout, diffs)
		}
		if len(diffs) == 0 {
			fmt.Println("No pending changes.")
			return nil
		}
		for _, d := range diffs {
			fmt.Println(describeFileDiff(d))
		}
		return nil
	},
}

var diffAcceptCmd = &cobra.Command{
	Use:   "accept [paths...]",
	Short: "Accept pending changes, optionally scoped to specific paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := diffHistoryServiceForCLI()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			svc.AcceptPendingChanges()
			fmt.Println("Accepted all pending changes.")
			return nil
		}
		if err := svc.PartialAccept(args); err != nil {
			return fmt.Errorf("partial accept: %w", err)
		}
		fmt.Printf("Accepted %d path(s).\n", len(args))
		return nil
	},
}

var diffRejectCmd = &cobra.Command{
	Use:   "reject [paths...]",
	Short: "Reject pending changes, optionally scoped to specific paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := diffHistoryServiceForCLI()
		if err != nil {
			return err
		}
		ctx := context.Background()
		var plan difhist.FilePlan
		if len(args) == 0 {
			plan, err = svc.RejectPendingChanges(ctx)
		} else {
			plan, err = svc.PartialReject(ctx, args)
		}
		if err != nil {
			return fmt.Errorf("reject: %w", err)
		}
		fmt.Printf("Rejected: %d write(s), %d delete(s).\n", len(plan.Writes), len(plan.Deletes))
		return nil
	},
}

var diffRevertCmd = &cobra.Command{
	Use:   "revert <userMessageID>",
	Short: "Rewind the working tree to the state before a given user turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := diffHistoryServiceForCLI()
		if err != nil {
			return err
		}
		plan, ok := svc.RevertToMessage(context.Background(), args[0])
		if !ok {
			return fmt.Errorf("no history entry for message %q", args[0])
		}
		fmt.Printf("Reverted: %d write(s), %d delete(s).\n", len(plan.Writes), len(plan.Deletes))
		return nil
	},
}

func describeFileDiff(d difhist.FileDiff) string {
	switch {
	case d.Before == nil:
		return fmt.Sprintf("+ %s (created)", d.Path)
	case d.After == nil:
		return fmt.Sprintf("- %s (deleted)", d.Path)
	default:
		return fmt.Sprintf("~ %s (modified)", d.Path)
	}
}

// dumpSessionDiffYAML serializes diffs for the --format=yaml debug flag,
// using the same YAML library TaskWing already depends on for config
// serialization.
func dumpSessionDiffYAML(w *os.File, diffs []difhist.FileDiff) error {
	type entry struct {
		Path   string  `yaml:"path"`
		Before *string `yaml:"before,omitempty"`
		After  *string `yaml:"after,omitempty"`
	}
	entries := make([]entry, len(diffs))
	for i, d := range diffs {
		entries[i] = entry{Path: d.Path, Before: d.Before, After: d.After}
	}
	out, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal diff as yaml: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.AddCommand(diffStatusCmd)
	diffCmd.AddCommand(diffAcceptCmd)
	diffCmd.AddCommand(diffRejectCmd)
	diffCmd.AddCommand(diffRevertCmd)

	diffStatusCmd.Flags().StringVar(&diffFormat, "format", "text", "output format: text or yaml")
}
