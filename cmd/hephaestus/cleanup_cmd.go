package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/silexa/hephaestus/internal/cleanup"
)

var (
	clRoot          string
	clExtraPaths    []string
	clDeepClean     bool
	clDryRun        bool
	clYes           bool
	clAuditManifest string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Sweep Python caches, build artifacts, and node_modules from a workspace",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVar(&clRoot, "root", "", "cleanup root (default: current directory)")
	cleanupCmd.Flags().StringArrayVar(&clExtraPaths, "extra-path", nil, "additional path to sweep (repeatable)")
	cleanupCmd.Flags().BoolVar(&clDeepClean, "deep-clean", false, "also remove .git and sweep caches inside .venv (site-packages is kept)")
	cleanupCmd.Flags().BoolVar(&clDryRun, "dry-run", false, "preview only; remove nothing")
	cleanupCmd.Flags().BoolVar(&clYes, "yes", false, "confirm out-of-root targets without an interactive prompt")
	cleanupCmd.Flags().StringVar(&clAuditManifest, "audit-manifest", "", "write the cleanup report as JSON to this path")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	root := clRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return newExitError(1, err)
		}
		root = wd
	}
	cfg, err := loadConfig()
	if err != nil {
		return newExitError(2, err)
	}

	opts := cleanup.Options{
		Root:                root,
		ExtraPaths:          clExtraPaths,
		IncludeGit:          clDeepClean,
		IncludePoetryEnv:    clDeepClean,
		CleanPythonCache:    true,
		CleanBuildArtifacts: true,
		CleanNodeModules:    true,
		DryRun:              clDryRun,
		AuditManifestPath:   clAuditManifest,
		Confirmed:           clYes,
	}

	sink := buildCLISink(cfg.TelemetryEnabled)
	report, err := cleanup.Run(cmd.Context(), sink, opts, promptConfirmation, nil)
	if err != nil {
		var dangerous *cleanup.DangerousPathError
		if errors.As(err, &dangerous) {
			return newExitError(2, err)
		}
		if errors.Is(err, cleanup.ErrAborted) {
			return newExitError(3, err)
		}
		return newExitError(1, err)
	}

	printCleanupReport(report)
	if report.Errors > 0 {
		return newExitError(1, fmt.Errorf("cleanup: %d entries failed", report.Errors))
	}
	return nil
}

// promptConfirmation is the ConfirmationChannel backing --yes's absence:
// an operator must type the literal string CONFIRM on stdin before an
// out-of-root target is swept.
func promptConfirmation() (string, bool) {
	fmt.Fprint(os.Stderr, "cleanup: out-of-root targets require confirmation; type CONFIRM to proceed: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func printCleanupReport(r cleanup.Report) {
	for _, e := range r.Entries {
		if e.Action == cleanup.ActionPreviewed {
			continue
		}
		fmt.Printf("%-10s %s\n", e.Action, e.Path)
	}
	fmt.Printf("cleanup: removed=%d skipped=%d errors=%d\n", r.Removed, r.Skipped, r.Errors)
}
