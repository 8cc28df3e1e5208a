package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixdesk/updater/internal/artifact"
	"github.com/helixdesk/updater/internal/config"
	"github.com/helixdesk/updater/internal/deltabuild"
	"github.com/helixdesk/updater/internal/download"
	"github.com/helixdesk/updater/internal/logging"
	"github.com/helixdesk/updater/internal/publish"
	"github.com/helixdesk/updater/internal/release"
	"github.com/helixdesk/updater/internal/tools"
)

var (
	version = "0.1.0"

	cfgFile   string
	platform  string
	target    string
	outDir    string
	indexFile string
	owner     string
	repo      string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "helix-deltabuild",
	Short: "HelixDesk delta build pipeline",
	Long:  `Builds binary delta updates between HelixDesk releases and publishes them with a platform manifest.`,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build deltas for the newest release",
	Run: func(cmd *cobra.Command, args []string) {
		runBuild()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("helix-deltabuild v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is updater.yaml in the config dir)")

	buildCmd.Flags().StringVar(&platform, "platform", "", "target platform: win or mac")
	buildCmd.Flags().StringVar(&target, "target", "", "installer target: nsis, nsis-web, or zip")
	buildCmd.Flags().StringVar(&outDir, "out", "", "output directory for deltas and manifest")
	buildCmd.Flags().StringVar(&indexFile, "index-file", "", "local YAML release index instead of the hosted index")
	buildCmd.Flags().StringVar(&owner, "owner", "", "hosted index owner")
	buildCmd.Flags().StringVar(&repo, "repo", "", "hosted index repository")
	buildCmd.Flags().StringVar(&token, "token", "", "hosted index access token")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBuild() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	if platform == "" {
		platform = cfg.Build.Platform
	}
	if target == "" {
		target = cfg.Build.Target
	}
	if outDir == "" {
		outDir = cfg.Build.OutputDir
	}
	if platform == "" || outDir == "" {
		fmt.Fprintln(os.Stderr, "Platform and output directory required. Use --platform/--out or set in config.")
		os.Exit(1)
	}

	index, err := buildIndex(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pub, err := publish.New(ctx, cfg.Build.Publish)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Publish provider: %v\n", err)
		os.Exit(1)
	}

	runner := tools.NewRunner(time.Duration(cfg.Build.ToolTimeoutSecs) * time.Second)
	payload := cfg.Product.ProcessName
	if platform == "mac" {
		payload = cfg.Product.Name + ".app"
	}

	orch := &deltabuild.Orchestrator{
		Opts: deltabuild.Options{
			ProductName:  cfg.Product.Name,
			ProcessName:  cfg.Product.ProcessName,
			AppID:        cfg.Product.AppID,
			IconPath:     cfg.Product.IconPath,
			Platform:     platform,
			Target:       target,
			OutDir:       outDir,
			ScriptPath:   cfg.Build.ScriptPath,
			HistoryLimit: cfg.Build.HistoryLimit,
		},
		Index: index,
		Cache: &artifact.Cache{
			Root:       cfg.Build.CacheRoot(),
			Downloader: download.New(),
			Extractor:  &tools.SevenZip{Path: cfg.Build.ExtractTool, Runner: runner},
			PayloadRel: payload,
		},
		Diff:     &tools.HDiff{Path: cfg.Build.DiffTool, Runner: runner},
		Compiler: &tools.Makensis{Path: cfg.Build.InstallerTool, Runner: runner},
		Signer:   &tools.SignTool{Path: cfg.Build.SignTool, Runner: runner},
		Pub:      pub,
	}

	res, err := orch.Build(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	if res.NoCandidates {
		fmt.Println("No prior releases to diff against; nothing to do.")
		return
	}
	fmt.Printf("Built %d delta(s), manifest at %s\n", len(res.Files), res.ManifestPath)
}

func buildIndex(cfg *config.Config) (release.Index, error) {
	if indexFile != "" {
		return &release.FileIndex{Path: indexFile}, nil
	}

	o, r := owner, repo
	if o == "" {
		o = cfg.Update.Owner
	}
	if r == "" {
		r = cfg.Update.Repo
	}
	if o == "" || r == "" {
		return nil, fmt.Errorf("release index required: use --index-file, or --owner/--repo for the hosted index")
	}

	var opts []release.HostedOption
	if token != "" {
		opts = append(opts, release.WithToken(token))
	}
	return release.NewHostedIndex(o, r, opts...), nil
}

func initLogging(cfg *config.Config) {
	if cfg.Log.File == "" {
		logging.Init(cfg.Log.Format, cfg.Log.Level, nil)
		return
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		logging.Init(cfg.Log.Format, cfg.Log.Level, nil)
		return
	}
	w, err := logging.NewRotatingWriter(cfg.Log.File, 10, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		logging.Init(cfg.Log.Format, cfg.Log.Level, nil)
		return
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, w)
}
