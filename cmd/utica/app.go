// Command utica is the CLI shell: each verb is a thin cobra.Command that
// wires together internal/manifest, internal/resolve, internal/checkout,
// internal/buildsched, internal/backend, and internal/xcbuild. Grounded on
// the pack's cobra idiom (_examples/flanksource-arch-unit/cmd/root.go,
// _examples/ConfigButler-gitops-reverser, _examples/ivuorinen-gh-action-readme)
// rather than the teacher's own hand-rolled flag.FlagSet command interface
// (cmd/dep/main.go), per this project's CLI convention.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/utica-dep/utica/internal/backend"
	"github.com/utica-dep/utica/internal/binaryfetch"
	"github.com/utica-dep/utica/internal/checkout"
	"github.com/utica-dep/utica/internal/manifest"
	"github.com/utica-dep/utica/internal/sourcevcs"
	"github.com/utica-dep/utica/internal/uclog"
	"github.com/utica-dep/utica/internal/uctx"
	"github.com/utica-dep/utica/internal/xcbuild"
)

// app bundles the long-lived collaborators a verb needs, built from the
// persistent flags by newApp at the start of a verb's RunE (validate builds
// a reduced one itself, without caches or an event log).
type app struct {
	ctx       *uctx.Ctx
	log       *uclog.Logger
	manifest  manifest.Options
	source    *sourcevcs.Backend
	manifests *binaryfetch.ManifestFetcher
	lister    *binaryfetch.ReleaseAssetLister
	resolver  *backend.Resolver
	eventLog  *eventLogWriter
}

func newApp() (*app, error) {
	ctx, err := uctx.NewCtx(projectDirectory)
	if err != nil {
		return nil, err
	}
	ctx.UseNetrc = useNetrc

	logger := uclog.New(os.Stdout)
	logger.Verbose = verbose

	var creds uctx.CredentialStore
	if useNetrc {
		creds, err = uctx.LoadCredentials(uctx.CredentialsPath())
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(ctx.DefaultMirrorRoot(), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(ctx.DefaultBinaryCacheRoot(), 0755); err != nil {
		return nil, err
	}

	source := sourcevcs.NewBackend(ctx.DefaultMirrorRoot())
	manifests := binaryfetch.NewManifestFetcher(http.DefaultClient, creds)

	cache, err := binaryfetch.OpenMetadataCache(ctx.CacheRoot)
	if err != nil {
		return nil, err
	}
	lister, err := binaryfetch.NewReleaseAssetLister(githubToken(), cache)
	if err != nil {
		return nil, err
	}

	manifestOpts := manifest.Options{BaseDir: ctx.ProjectRoot}

	var logWriter *eventLogWriter
	if logPath != "" {
		logWriter, err = newEventLogWriter(logPath)
		if err != nil {
			return nil, err
		}
	}

	return &app{
		ctx:       ctx,
		log:       logger,
		manifest:  manifestOpts,
		source:    source,
		manifests: manifests,
		lister:    lister,
		resolver:  backend.New(source, manifests, manifestOpts),
		eventLog:  logWriter,
	}, nil
}

func githubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// loadManifests parses the primary and (if present) private manifest and
// merges them, failing on any declared-twice dependency (spec §3 invariant).
func (a *app) loadManifests() ([]manifest.Entry, error) {
	primaryData, err := os.ReadFile(a.ctx.ManifestPath())
	if err != nil {
		return nil, err
	}
	primary, err := manifest.Parse(primaryData, uctx.ManifestName, a.manifest)
	if err != nil {
		return nil, err
	}

	var private []manifest.Entry
	if data, err := os.ReadFile(a.ctx.PrivateManifestPath()); err == nil {
		private, err = manifest.Parse(data, uctx.PrivateManifestName, a.manifest)
		if err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return manifest.Merge(primary, private)
}

func (a *app) loadLock() ([]manifest.LockEntry, bool, error) {
	data, err := os.ReadFile(a.ctx.LockPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	entries, err := manifest.ParseLock(data, a.manifest)
	return entries, true, err
}

func (a *app) newCheckoutEngine(useSubmodules bool) *checkout.Engine {
	return checkout.NewEngine(a.ctx, a.source, useSubmodules)
}

func (a *app) newBuilder() *xcbuild.Builder {
	return xcbuild.NewBuilder(a.ctx, configuration)
}

func (a *app) newInstaller() *xcbuild.Installer {
	downloader := binaryfetch.NewDownloader(http.DefaultClient, nil)
	return xcbuild.NewInstaller(a.ctx, a.lister, a.manifests, downloader)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
