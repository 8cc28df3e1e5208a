// Package deltabuild sequences the per-release delta pipeline: download
// each prior installer, extract it, diff it against the newest release,
// wrap and sign the patch where the platform requires it, and record the
// result into the platform manifest.
package deltabuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/helixdesk/updater/internal/artifact"
	"github.com/helixdesk/updater/internal/integrity"
	"github.com/helixdesk/updater/internal/logging"
	"github.com/helixdesk/updater/internal/manifest"
	"github.com/helixdesk/updater/internal/release"
	"github.com/helixdesk/updater/internal/tools"
	"github.com/helixdesk/updater/internal/workerpool"
)

var log = logging.L("deltabuild")

// publishWorkers bounds concurrent uploads.
const publishWorkers = 4

// Publisher uploads produced files to the release host. Optional.
type Publisher interface {
	Upload(ctx context.Context, localPath, remoteName string) error
}

// Options configures one pipeline run.
type Options struct {
	ProductName  string
	ProcessName  string
	AppID        string
	IconPath     string
	Platform     string // "win" or "mac"
	Target       string // "nsis", "nsis-web", "zip"
	OutDir       string
	ScriptPath   string // installer script template, Windows only
	HistoryLimit int
}

// Orchestrator owns the collaborators of the build pipeline.
type Orchestrator struct {
	Opts     Options
	Index    release.Index
	Cache    *artifact.Cache
	Diff     tools.DiffTool
	Compiler tools.InstallerCompiler
	Signer   tools.Signer
	Pub      Publisher // nil disables publishing
}

// Result reports one pipeline run. NoCandidates distinguishes "the index
// had no usable releases" from "candidates existed but every pair
// failed" — the latter still carries an empty-entries manifest.
type Result struct {
	Files        []string
	Manifest     *manifest.Manifest
	ManifestPath string
	NoCandidates bool
}

// Build runs the pipeline for the newest release in the index.
// Prior-release failures are scoped to their pair and logged; the run
// itself only fails on environmental errors (output dir, manifest
// write, publish).
func (o *Orchestrator) Build(ctx context.Context) (*Result, error) {
	releases, err := o.Index.ListReleases(ctx)
	if err != nil {
		// Unreachable index means "no updates possible", not a build error.
		log.Warn("release index unavailable", "error", err)
		return &Result{NoCandidates: true}, nil
	}
	if len(releases) == 0 {
		return &Result{NoCandidates: true}, nil
	}

	latestRefs := release.ResolveHistory(releases[:1], o.Opts.Platform, o.Opts.Target, 1)
	if len(latestRefs) == 0 {
		log.Warn("latest release has no usable installer asset", "version", releases[0].Version)
		return &Result{NoCandidates: true}, nil
	}
	latest := latestRefs[0]

	priors := release.ResolveHistory(releases[1:], o.Opts.Platform, o.Opts.Target, o.Opts.HistoryLimit)
	if len(priors) == 0 {
		log.Info("no prior releases suitable for diffing", "latest", latest.Version)
		return &Result{NoCandidates: true}, nil
	}

	if err := os.MkdirAll(o.Opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	newDir, err := o.materialize(ctx, latest)
	if err != nil {
		return nil, fmt.Errorf("latest release %s: %w", latest.Version, err)
	}

	m := manifest.New(o.Opts.ProductName, latest.Version)
	result := &Result{Manifest: m}

	for _, prior := range priors {
		file, err := o.buildPair(ctx, prior, latest, newDir, m)
		if err != nil {
			log.Warn("skipping delta pair", "from", prior.Version, "to", latest.Version, "error", err)
			continue
		}
		result.Files = append(result.Files, file)
	}

	result.ManifestPath = filepath.Join(o.Opts.OutDir, manifest.FileName(o.Opts.Platform))
	if err := m.WriteFile(result.ManifestPath); err != nil {
		return nil, err
	}
	log.Info("manifest written", "path", result.ManifestPath, "entries", len(m.Entries))

	if o.Pub != nil {
		if err := o.publish(ctx, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// materialize ensures a release's artifact is downloaded and extracted,
// returning its diff root.
func (o *Orchestrator) materialize(ctx context.Context, ref release.Ref) (string, error) {
	art, err := o.Cache.Ensure(ctx, ref)
	if err != nil {
		return "", err
	}
	dir, err := o.Cache.EnsureExtracted(ctx, art)
	if err != nil {
		return "", err
	}
	return o.Cache.DiffRoot(dir), nil
}

// buildPair produces the published delta artifact for one prior version
// and records it in the manifest.
func (o *Orchestrator) buildPair(ctx context.Context, prior, latest release.Ref, newDir string, m *manifest.Manifest) (string, error) {
	oldDir, err := o.materialize(ctx, prior)
	if err != nil {
		return "", err
	}

	base := fmt.Sprintf("%s-%s-to-%s-delta", o.Opts.ProductName, prior.Version, latest.Version)

	var published string
	if o.Opts.Platform == "win" {
		rawPatch := filepath.Join(o.Opts.OutDir, base+".patch")
		if err := o.Diff.Create(ctx, oldDir, newDir, rawPatch); err != nil {
			return "", err
		}

		published = filepath.Join(o.Opts.OutDir, base+".exe")
		defines := tools.Defines{
			ProductName:   o.Opts.ProductName,
			ProcessName:   o.Opts.ProcessName,
			AppID:         o.Opts.AppID,
			IconPath:      o.Opts.IconPath,
			OutputPath:    published,
			PatchPath:     rawPatch,
			PatchFileName: filepath.Base(rawPatch),
		}
		if err := o.Compiler.Compile(ctx, defines, o.Opts.ScriptPath); err != nil {
			return "", err
		}
		if err := o.Signer.Sign(ctx, published); err != nil {
			return "", err
		}
	} else {
		published = filepath.Join(o.Opts.OutDir, base+".patch")
		if err := o.Diff.Create(ctx, oldDir, newDir, published); err != nil {
			return "", err
		}
	}

	sum, err := integrity.FileSHA256(published)
	if err != nil {
		return "", err
	}

	m.Record(prior.Version, manifest.Entry{
		Path:   filepath.Base(published),
		SHA256: sum,
	})
	log.Info("delta built", "from", prior.Version, "to", latest.Version, "file", filepath.Base(published))

	return published, nil
}

// publish uploads delta files concurrently, then the manifest last so
// clients never see a manifest referencing files not yet uploaded.
func (o *Orchestrator) publish(ctx context.Context, r *Result) error {
	var (
		mu       sync.Mutex
		firstErr error
	)

	pool := workerpool.New(publishWorkers, len(r.Files)+1)
	for _, f := range r.Files {
		f := f
		pool.Submit(func() {
			if err := o.Pub.Upload(ctx, f, filepath.Base(f)); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("publish %s: %w", filepath.Base(f), err)
				}
				mu.Unlock()
			}
		})
	}
	pool.Drain(ctx)

	if firstErr != nil {
		return firstErr
	}
	if err := o.Pub.Upload(ctx, r.ManifestPath, filepath.Base(r.ManifestPath)); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	log.Info("published artifacts", "count", len(r.Files)+1)
	return nil
}
