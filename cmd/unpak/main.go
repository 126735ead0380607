// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

// unpak builds source packages in isolated bubblewrap sandboxes.
//
// Usage:
//
//	unpak build [flags] <manifest.jsonc>
//	unpak bootstrap [flags]
//	unpak run [flags] <manifest.jsonc> -- <command> [args...]
//	unpak dry-run [flags] <manifest.jsonc> -- <command> [args...]
//	unpak capabilities
//	unpak version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Bitbot25/unpak/bootstrap"
	"github.com/Bitbot25/unpak/lib/config"
	"github.com/Bitbot25/unpak/lib/process"
	"github.com/Bitbot25/unpak/lib/version"
	"github.com/Bitbot25/unpak/project"
	"github.com/Bitbot25/unpak/sandbox"
	"github.com/Bitbot25/unpak/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("UNPAK_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "build":
		err = buildCmd(args, logger)
	case "bootstrap":
		err = bootstrapCmd(args, logger)
	case "run":
		err = runCmd(args, logger, false)
	case "dry-run":
		err = runCmd(args, logger, true)
	case "capabilities":
		err = capabilitiesCmd(args)
	case "version", "--version", "-v":
		if len(args) > 0 && args[0] == "--full" {
			fmt.Printf("unpak %s\n", version.Full())
		} else {
			fmt.Printf("unpak %s\n", version.Info())
		}
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if code, ok := sandbox.IsExitError(err); ok {
			process.Exit(code)
		}
		process.Fatal(err)
	}
}

func printUsage() {
	fmt.Print(`unpak - Build source packages in isolated bubblewrap sandboxes

USAGE
    unpak <command> [flags] [-- <args>...]

COMMANDS
    build         Build a project at a stage and record its outputs
    bootstrap     Run the full bootstrap (seed, stage1, stage2)
    run           Run a command sandboxed with a project's dependencies
    dry-run       Print the sandbox command instead of executing it
    capabilities  Report sandboxing support on this host
    version       Show version (--full adds Go version and platform)

EXAMPLES
    # Build a package with the stage-two toolchain
    unpak build --output=/tmp/out gcc.jsonc

    # Bootstrap a toolchain from scratch
    unpak bootstrap --seed=seed.jsonc --stage1=tc.jsonc --stage2=tc-final.jsonc \
        --output-root=/tmp/bootstrap

    # Inspect the sandbox a build would run in
    unpak dry-run gcc.jsonc -- sh -c 'gcc --version'

ENVIRONMENT
    UNPAK_CONFIG  Path to the unpak.yaml config file
    UNPAK_DEBUG   Enable debug logging
`)
}

// loadConfig resolves the configuration: an explicit --config flag wins,
// then UNPAK_CONFIG, then built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv("UNPAK_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured artifact store with the configured
// compression.
func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(cfg.Paths.Store)
	if err != nil {
		return nil, err
	}
	tag, err := store.ParseCompressionTag(cfg.Store.Compression)
	if err != nil {
		return nil, err
	}
	s.SetCompression(tag)
	return s, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

// buildCmd implements the "build" command.
func buildCmd(args []string, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("build", pflag.ExitOnError)

	configPath := fs.String("config", "", "Path to unpak.yaml")
	stageName := fs.String("stage", "stage2", "Build stage (bootstrap, stage1, stage2)")
	outputDir := fs.String("output", "", "Directory the build writes its bin/ and lib/ outputs to (required)")
	patchInterp := fs.Bool("patch-interpreter", false, "Rewrite the interpreter of built executables to the sandbox path")

	fs.Usage = func() {
		fmt.Print(`unpak build - Build a project at a stage and record its outputs

USAGE
    unpak build [flags] <manifest.jsonc>

FLAGS
`)
		fmt.Print(fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("exactly one manifest is required")
	}
	if *outputDir == "" {
		return fmt.Errorf("--output is required")
	}

	stage, err := bootstrap.ParseStage(*stageName)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	proj, err := project.ReadManifest(fs.Arg(0))
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline := &bootstrap.Pipeline{
		Store:       s,
		Logger:      logger,
		Interpreter: sandbox.HostPath(cfg.Sandbox.Interpreter),
		BwrapPath:   cfg.Sandbox.Bwrap,
	}
	err = pipeline.Run(ctx, []bootstrap.StageBuild{
		{Stage: stage, Project: proj, OutputDir: *outputDir},
	})
	if err != nil {
		return err
	}

	if *patchInterp {
		return patchExecutables(ctx, cfg.Sandbox.Patchelf, *outputDir)
	}
	return nil
}

// patchExecutables rewrites the interpreter of every executable in the
// output's bin/ directory so it resolves inside a sandbox.
func patchExecutables(ctx context.Context, patchelf string, outputDir string) error {
	entries, err := os.ReadDir(filepath.Join(outputDir, "bin"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		binary := sandbox.HostPath(filepath.Join(outputDir, "bin", entry.Name()))
		if err := sandbox.PatchInterpreter(ctx, patchelf, binary); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapCmd implements the "bootstrap" command.
func bootstrapCmd(args []string, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("bootstrap", pflag.ExitOnError)

	configPath := fs.String("config", "", "Path to unpak.yaml")
	seedManifest := fs.String("seed", "", "Manifest built on the host (required)")
	stage1Manifest := fs.String("stage1", "", "Manifest built sandboxed from the seed outputs (required)")
	stage2Manifest := fs.String("stage2", "", "Manifest rebuilt with the stage-one toolchain (required)")
	outputRoot := fs.String("output-root", "", "Directory receiving one output tree per stage (required)")

	fs.Usage = func() {
		fmt.Print(`unpak bootstrap - Run the full bootstrap (seed, stage1, stage2)

USAGE
    unpak bootstrap --seed=<manifest> --stage1=<manifest> --stage2=<manifest> \
        --output-root=<dir> [flags]

FLAGS
`)
		fmt.Print(fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	for name, value := range map[string]string{
		"--seed":        *seedManifest,
		"--stage1":      *stage1Manifest,
		"--stage2":      *stage2Manifest,
		"--output-root": *outputRoot,
	} {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}

	stages := []struct {
		stage    bootstrap.Stage
		manifest string
	}{
		{bootstrap.StageBootstrap, *seedManifest},
		{bootstrap.StageOne, *stage1Manifest},
		{bootstrap.StageTwo, *stage2Manifest},
	}
	var builds []bootstrap.StageBuild
	for _, st := range stages {
		proj, err := project.ReadManifest(st.manifest)
		if err != nil {
			return err
		}
		dir := filepath.Join(*outputRoot, st.stage.String())
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		builds = append(builds, bootstrap.StageBuild{
			Stage:     st.stage,
			Project:   proj,
			OutputDir: dir,
		})
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline := &bootstrap.Pipeline{
		Store:       s,
		Logger:      logger,
		Interpreter: sandbox.HostPath(cfg.Sandbox.Interpreter),
		BwrapPath:   cfg.Sandbox.Bwrap,
	}
	return pipeline.Run(ctx, builds)
}

// runCmd implements "run" and "dry-run": compose a sandbox from a
// project's declared dependencies and execute (or print) a command in
// it.
func runCmd(args []string, logger *slog.Logger, dryRun bool) error {
	name := "run"
	if dryRun {
		name = "dry-run"
	}
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)

	configPath := fs.String("config", "", "Path to unpak.yaml")
	workdir := fs.String("workdir", "", "Working directory inside the sandbox")
	envs := fs.StringArray("env", nil, "Environment variable (KEY=VALUE), repeatable")

	fs.Usage = func() {
		fmt.Printf(`unpak %s - Run a command sandboxed with a project's dependencies

USAGE
    unpak %s [flags] <manifest.jsonc> -- <command> [args...]

FLAGS
`, name, name)
		fmt.Print(fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("a manifest and a command are required")
	}
	manifest, command := rest[0], rest[1:]

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	proj, err := project.ReadManifest(manifest)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}

	var artifacts []sandbox.Artifact
	for _, dep := range proj.Dependencies() {
		resolved, err := s.Resolve(dep)
		if err != nil {
			return fmt.Errorf("dependency %s unsatisfiable: %w", dep, err)
		}
		artifacts = append(artifacts, resolved...)
	}

	b, err := sandbox.Compose(artifacts, sandbox.HostPath(cfg.Sandbox.Interpreter))
	if err != nil {
		return err
	}
	b.SetEnvironmentPolicy(sandbox.EnvExplicit)
	if err := b.AddEnv("PATH", "/usr/bin:/usr/sbin"); err != nil {
		return err
	}
	for _, env := range *envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid env format %q: must be KEY=VALUE", env)
		}
		if err := b.AddEnv(parts[0], parts[1]); err != nil {
			return err
		}
	}
	if *workdir != "" {
		b.SetWorkdir(sandbox.SandboxPath(*workdir))
	}
	b.UnsharePID(true)
	b.NewSession(true)
	if cfg.Sandbox.Bwrap != "" {
		b.SetBwrapPath(cfg.Sandbox.Bwrap)
	}
	b.SetProgram(sandbox.SandboxPath(command[0]), command[1:]...)

	if dryRun {
		argv, diags, err := b.Args()
		if err != nil {
			return err
		}
		for _, d := range diags {
			logger.Warn("sandbox diagnostic", "code", d.Code, "message", d.Message)
		}
		bwrap := cfg.Sandbox.Bwrap
		if bwrap == "" {
			bwrap = "bwrap"
		}
		full := append([]string{bwrap}, argv...)
		if term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Println(strings.Join(full, " \\\n  "))
		} else {
			fmt.Println(strings.Join(full, " "))
		}
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	proc, diags, err := b.Finalize(ctx)
	for _, d := range diags {
		logger.Warn("sandbox diagnostic", "code", d.Code, "message", d.Message)
	}
	if err != nil {
		return err
	}
	return proc.Wait()
}

// capabilitiesCmd implements the "capabilities" command.
func capabilitiesCmd(args []string) error {
	caps := sandbox.DetectCapabilities()

	fmt.Println("Sandbox capabilities:")
	fmt.Printf("  bubblewrap:      %s\n", yesNo(caps.BwrapAvailable))
	if caps.BwrapAvailable {
		fmt.Printf("  bwrap path:      %s\n", caps.BwrapPath)
		fmt.Printf("  bwrap version:   %s\n", caps.BwrapVersion)
	}
	fmt.Printf("  user namespaces: %s\n", yesNo(caps.UserNamespacesEnabled))
	fmt.Printf("  patchelf:        %s\n", yesNo(caps.PatchelfAvailable))

	if !caps.CanSandbox() {
		return fmt.Errorf("sandboxed builds unavailable: %s", caps.SkipReason())
	}
	fmt.Println("\nSandboxed builds are available.")
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
