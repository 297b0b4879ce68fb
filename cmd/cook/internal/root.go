package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goplus/cook/internal/build"
	"github.com/goplus/cook/internal/config"
	"github.com/goplus/cook/mod/module"
	"github.com/goplus/cook/platform"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

// errFailed is returned when some target did not build. The report has
// already been printed.
var errFailed = errors.New("build failed")

var flags struct {
	verbose bool
	file    string

	os, compiler, arch, buildType string
	options                       []string

	workspace, packages string
	jobs, compileJobs   int
	timeout             time.Duration
	force               bool
}

var rootCmd = &cobra.Command{
	Use:   "cook",
	Short: "cook builds native libraries from recipes",
	Long: `cook downloads, builds and packages native libraries for a target
platform. Packages are published with headers, libraries, licenses and the
metadata needed to link against them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flags.verbose {
			log.SetOutputLevel(log.Ldebug)
		} else {
			log.SetOutputLevel(log.Linfo)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output, including toolchain output")
	pf.StringVarP(&flags.file, "file", "f", "", "Batch file (default "+config.DefaultFile+" if present)")
	pf.StringVar(&flags.os, "os", "", "Target operating system (linux, macos, windows)")
	pf.StringVar(&flags.compiler, "compiler", "", "Target compiler family (gcc, clang, apple-clang, osxcross, msvc)")
	pf.StringVar(&flags.arch, "arch", "", "Target architecture (x86_64, x86, armv8)")
	pf.StringVar(&flags.buildType, "build-type", "", "Build type (release, debug)")
	pf.StringArrayVarP(&flags.options, "option", "o", nil, "Global recipe option name=value, repeatable")
	pf.StringVar(&flags.workspace, "workspace", "", "Working directory root")
	pf.StringVar(&flags.packages, "packages", "", "Package directory root")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if errors.Is(err, errFailed) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "cook:", err)
		os.Exit(1)
	}
}

// loadBatch returns the batch file named by --file, or the default one in
// the current directory. It returns nil if there is none.
func loadBatch() (*config.File, error) {
	path := flags.file
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err != nil {
			return nil, nil
		}
		path = config.DefaultFile
	}
	return config.Load(path)
}

// builderOptions merges the batch file, if any, with the command line.
// Flags win.
func builderOptions(cmd *cobra.Command, f *config.File) (build.Options, error) {
	var p config.Platform
	global := make(map[string]string)
	var opts build.Options
	if f != nil {
		p = f.Platform
		for k, v := range f.Options {
			global[k] = v
		}
		opts = build.Options{
			WorkspaceDir: f.Workspace,
			PackageDir:   f.Output,
			Jobs:         f.Jobs,
			CompileJobs:  f.CompileJobs,
			Timeout:      f.Timeout,
		}
	}
	override(&p.OS, flags.os)
	override(&p.Compiler, flags.compiler)
	override(&p.Arch, flags.arch)
	override(&p.BuildType, flags.buildType)
	d, err := p.Descriptor()
	if err != nil {
		return build.Options{}, err
	}
	opts.Platform = d

	assigned, err := platform.ParseAssignments(flags.options)
	if err != nil {
		return build.Options{}, err
	}
	for k, v := range assigned {
		global[k] = v
	}
	opts.Global = global

	if flags.workspace != "" {
		opts.WorkspaceDir = flags.workspace
	}
	if flags.packages != "" {
		opts.PackageDir = flags.packages
	}
	fs := cmd.Flags()
	if fs.Lookup("jobs") != nil && fs.Changed("jobs") {
		opts.Jobs = flags.jobs
	}
	if fs.Lookup("compile-jobs") != nil && fs.Changed("compile-jobs") {
		opts.CompileJobs = flags.compileJobs
	}
	if fs.Lookup("timeout") != nil && fs.Changed("timeout") {
		opts.Timeout = flags.timeout
	}
	opts.Force = flags.force
	if flags.verbose {
		opts.Output = os.Stderr
	} else {
		opts.Output = io.Discard
	}
	return opts, nil
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

// parseTargets parses "name@version" arguments.
func parseTargets(args []string) ([]build.Target, error) {
	targets := make([]build.Target, 0, len(args))
	for _, arg := range args {
		id, err := module.Parse(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, build.Target{ID: id})
	}
	return targets, nil
}
