package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixdesk/updater/internal/apply"
	"github.com/helixdesk/updater/internal/attempt"
	"github.com/helixdesk/updater/internal/autoupdate"
	"github.com/helixdesk/updater/internal/config"
	"github.com/helixdesk/updater/internal/host"
	"github.com/helixdesk/updater/internal/logging"
	"github.com/helixdesk/updater/internal/release"
)

var (
	version = "0.1.0"

	cfgFile    string
	appVersion string
)

var rootCmd = &cobra.Command{
	Use:   "helix-updater",
	Short: "HelixDesk update agent",
	Long:  `Polls for HelixDesk releases, downloads verified delta updates, and applies them at quit or on demand.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the update agent until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single update cycle and exit",
	Run: func(cmd *cobra.Command, args []string) {
		checkOnce()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("helix-updater v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is updater.yaml in the config dir)")
	rootCmd.PersistentFlags().StringVar(&appVersion, "app-version", "", "running application version (default: this binary's version)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type wiring struct {
	mgr *autoupdate.Manager
	seq *apply.Sequencer
	rt  *host.ProcessRuntime
}

func buildWiring() (*wiring, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, nil)

	if cfg.Update.Owner == "" || cfg.Update.Repo == "" {
		return nil, fmt.Errorf("update.owner and update.repo must be configured for the release index")
	}

	current := appVersion
	if current == "" {
		current = version
	}

	rt := &host.ProcessRuntime{AppVersion: current, Packaged: true}
	holder := filepath.Join(config.DataDir(), "pending")
	attempts := &attempt.Store{Dir: config.DataDir()}

	platform := platformKey()
	native := &autoupdate.IndexUpdater{
		Index:    release.NewHostedIndex(cfg.Update.Owner, cfg.Update.Repo),
		Platform: platform,
		Target:   installerTarget(platform),
		Dir:      holder,
	}

	mgr := autoupdate.New(autoupdate.Options{
		Config:    cfg.Update,
		Host:      rt,
		Native:    native,
		Attempts:  attempts,
		HolderDir: holder,
	})

	seq := &apply.Sequencer{
		Host:          rt,
		Native:        native,
		Attempts:      attempts,
		AppName:       cfg.Product.Name,
		HelperPath:    filepath.Join(holder, autoupdate.MacApplierAsset),
		PatchToolPath: filepath.Join(holder, autoupdate.MacPatchToolAsset),
	}

	rt.OnQuit(func() {
		seq.ApplyOnQuit(mgr.Pending())
	})

	mgr.Subscribe(func(ev autoupdate.Event) {
		switch ev.Type {
		case autoupdate.EventUpdateDownloaded:
			rt.ShowNotification("Update ready",
				fmt.Sprintf("HelixDesk %s will install when you quit.", ev.Version))
		case autoupdate.EventError:
			fmt.Fprintf(os.Stderr, "Update error: %v\n", ev.Err)
		}
	})

	return &wiring{mgr: mgr, seq: seq, rt: rt}, nil
}

func platformKey() string {
	switch runtime.GOOS {
	case "windows":
		return "win"
	case "darwin":
		return "mac"
	default:
		return ""
	}
}

// installerTarget maps a platform key to its full-installer target.
func installerTarget(platform string) string {
	switch platform {
	case "win":
		return "nsis"
	case "mac":
		return "zip"
	}
	return ""
}

func runAgent() {
	w, err := buildWiring()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Starting HelixDesk update agent v%s\n", version)
	w.mgr.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	fmt.Println("\nShutting down update agent...")
	w.mgr.Stop()
	w.rt.RunQuitHooks()
}

func checkOnce() {
	w, err := buildWiring()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	w.mgr.CheckNow(ctx)

	pending := w.mgr.Pending()
	switch {
	case pending == nil:
		fmt.Println("No update pending.")
	case pending.IsDelta:
		fmt.Printf("Delta update to %s ready: %s\n", pending.Version, pending.LocalPath)
	default:
		fmt.Printf("Full update to %s downloaded.\n", pending.Version)
	}
}
