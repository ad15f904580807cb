package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Binary returns a Checker that verifies an external binary can be resolved
// via PATH (or an absolute path) and executed with --version.
func Binary(name, path string) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			resolved, err := exec.LookPath(path)
			if err != nil {
				return fmt.Errorf("binary %q not found: %w", path, err)
			}
			if err := exec.CommandContext(ctx, resolved, "--version").Run(); err != nil {
				return fmt.Errorf("binary %q not runnable: %w", path, err)
			}
			return nil
		},
	}
}

// Workspace returns a Checker that verifies the agent workspace exists and is
// writable.
func Workspace(dir string) Checker {
	return Checker{
		Name: "workspace",
		Check: func(_ context.Context) error {
			fi, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("workspace %q: %w", dir, err)
			}
			if !fi.IsDir() {
				return fmt.Errorf("workspace %q is not a directory", dir)
			}
			f, err := os.CreateTemp(dir, ".health-*")
			if err != nil {
				return fmt.Errorf("workspace %q not writable: %w", dir, err)
			}
			name := f.Name()
			f.Close()
			return os.Remove(name)
		},
	}
}

// Pinger is the subset of the session store used for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store returns a Checker over the session store backend.
func Store(p Pinger) Checker {
	return Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			return p.Ping(ctx)
		},
	}
}
