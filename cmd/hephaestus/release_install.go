package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/silexa/hephaestus/internal/release"
)

var (
	relRepository         string
	relTag                string
	relAssetPattern       string
	relManifestPattern    string
	relSigstorePattern    string
	relRequireSigstore    bool
	relSigstoreIdentities []string
	relAllowUnsigned      bool
	relTimeoutS           float64
	relMaxRetries         int
	relDestination        string
	relToken              string
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Download and verify signed release artifacts",
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download a release asset, verify it, and install its wheels",
	RunE:  runReleaseInstall,
}

func init() {
	releaseCmd.AddCommand(installCmd)

	installCmd.Flags().StringVar(&relRepository, "repository", "", "owner/name of the GitHub repository")
	installCmd.Flags().StringVar(&relTag, "tag", "latest", `release tag, or "latest"`)
	installCmd.Flags().StringVar(&relAssetPattern, "asset-pattern", "", "glob matching the asset to install")
	installCmd.Flags().StringVar(&relManifestPattern, "manifest-pattern", "", "glob matching the checksum manifest")
	installCmd.Flags().StringVar(&relSigstorePattern, "sigstore-pattern", "", "glob matching the sigstore bundle")
	installCmd.Flags().BoolVar(&relRequireSigstore, "require-sigstore", false, "fail if no sigstore bundle is found")
	installCmd.Flags().StringArrayVar(&relSigstoreIdentities, "sigstore-identities", nil, "pinned signer identity (repeatable)")
	installCmd.Flags().BoolVar(&relAllowUnsigned, "allow-unsigned", false, "install even when no checksum manifest is found")
	installCmd.Flags().Float64Var(&relTimeoutS, "timeout-s", 30, "per-request timeout in seconds")
	installCmd.Flags().IntVar(&relMaxRetries, "max-retries", 3, "retry attempts for transient network failures")
	installCmd.Flags().StringVar(&relDestination, "destination", "", "directory to install the wheelhouse into")
	installCmd.Flags().StringVar(&relToken, "token", "", "GitHub token for a private repository")
}

func runReleaseInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return newExitError(2, err)
	}

	rr := release.Request{
		Repository:         relRepository,
		Tag:                relTag,
		AssetPattern:       relAssetPattern,
		ManifestPattern:    relManifestPattern,
		SigstorePattern:    relSigstorePattern,
		RequireSigstore:    relRequireSigstore,
		SigstoreIdentities: relSigstoreIdentities,
		AllowUnsigned:      relAllowUnsigned,
		TimeoutS:           relTimeoutS,
		MaxRetries:         relMaxRetries,
		Destination:        relDestination,
		Token:              relToken,
	}
	if err := rr.Validate(); err != nil {
		return newExitError(2, err)
	}

	sink := buildCLISink(cfg.TelemetryEnabled)
	installed, err := release.Install(cmd.Context(), sink, rr)
	if err != nil {
		var cfgErr *release.ConfigError
		if errors.As(err, &cfgErr) {
			return newExitError(2, err)
		}
		return newExitError(1, err)
	}

	printInstalledRelease(installed)
	return nil
}

func printInstalledRelease(installed release.InstalledRelease) {
	fmt.Printf("release: installed %s (sha256=%s) into %s\n",
		installed.Asset.Name, installed.Asset.SHA256, installed.WheelhouseDir)
	for _, wheel := range installed.InstalledWheels {
		fmt.Printf("  %s\n", wheel)
	}
	fmt.Printf("release: duration=%s\n", installed.Duration)
}
