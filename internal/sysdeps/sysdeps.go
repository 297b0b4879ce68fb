// Package sysdeps installs OS-level prerequisites of recipes. It is a side
// channel of the build: it only ensures packages are present and never
// feeds data into a build plan.
package sysdeps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/goplus/cook/internal/executor"
	"github.com/goplus/cook/pkgs/buildsys"
	"github.com/goplus/cook/platform"
	"github.com/qiniu/x/log"
)

// Packages maps a package manager name to the packages a recipe needs from it.
type Packages map[string][]string

// Manager describes a system package manager.
type Manager struct {
	Name    string
	Query   []string // exits zero when the package is installed
	Install []string
	Env     map[string]string
}

// Managers are probed in order; the first one found on PATH is used.
var Managers = []Manager{
	{
		Name:    "apt-get",
		Query:   []string{"dpkg", "-s"},
		Install: []string{"apt-get", "install", "-y", "--no-install-recommends"},
		Env:     map[string]string{"DEBIAN_FRONTEND": "noninteractive"},
	},
	{
		Name:    "yum",
		Query:   []string{"rpm", "-q"},
		Install: []string{"yum", "install", "-y"},
	},
}

type attempt struct {
	once sync.Once
	err  error
}

// Fence runs the system installer at most once per package for the
// lifetime of the Fence, which is one batch.
type Fence struct {
	Runner   executor.Runner
	Host     platform.OS
	LookPath func(string) (string, error)
	// Root reports whether the process may install without sudo.
	Root bool

	detect  sync.Once
	manager *Manager

	mu       sync.Mutex
	attempts map[string]*attempt
}

// NewFence returns a Fence for the current machine.
func NewFence(runner executor.Runner) *Fence {
	host, _ := platform.ParseOS(runtime.GOOS)
	return &Fence{
		Runner:   runner,
		Host:     host,
		LookPath: exec.LookPath,
		Root:     os.Geteuid() == 0,
	}
}

// Ensure makes pkgs present. Packages already attempted in this batch are
// not attempted again; their first outcome is returned.
func (f *Fence) Ensure(ctx context.Context, recipe string, pkgs Packages) error {
	if len(pkgs) == 0 {
		return nil
	}
	if f.Host != platform.Linux {
		log.Debugf("%s: system packages are only installed on linux hosts", recipe)
		return nil
	}
	f.detect.Do(func() { f.manager = f.detectManager() })
	m := f.manager
	if m == nil {
		log.Warnf("%s: no supported system package manager found, skipped installing prerequisites", recipe)
		return nil
	}
	for _, name := range pkgs[m.Name] {
		a := f.attempt(m.Name + ":" + name)
		a.once.Do(func() { a.err = f.ensure(ctx, m, name) })
		if a.err != nil {
			return fmt.Errorf("%s: system package %s: %w", recipe, name, a.err)
		}
	}
	return nil
}

func (f *Fence) attempt(key string) *attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = make(map[string]*attempt)
	}
	a, ok := f.attempts[key]
	if !ok {
		a = new(attempt)
		f.attempts[key] = a
	}
	return a
}

func (f *Fence) detectManager() *Manager {
	for i := range Managers {
		if _, err := f.LookPath(Managers[i].Name); err == nil {
			return &Managers[i]
		}
	}
	return nil
}

func (f *Fence) ensure(ctx context.Context, m *Manager, name string) error {
	query := slices.Concat(m.Query, []string{name})
	if code, _ := f.run(ctx, m, query, nil); code == 0 {
		log.Debugf("system package %s already installed", name)
		return nil
	}

	install := slices.Concat(m.Install, []string{name})
	if !f.Root {
		if _, err := f.LookPath("sudo"); err == nil {
			install = slices.Concat([]string{"sudo", "-n"}, install)
		}
	}
	log.Infof("installing system package %s: %s", name, strings.Join(install, " "))
	var out bytes.Buffer
	if _, err := f.run(ctx, m, install, &out); err != nil {
		return fmt.Errorf("%w\n%s", err, strings.TrimSpace(out.String()))
	}
	return nil
}

func (f *Fence) run(ctx context.Context, m *Manager, argv []string, out *bytes.Buffer) (int, error) {
	if out == nil {
		out = new(bytes.Buffer)
	}
	return f.Runner.Run(ctx, executor.Command{
		Exe:    argv[0],
		Args:   argv[1:],
		Env:    buildsys.MergeEnv(os.Environ(), m.Env),
		Output: out,
	})
}
