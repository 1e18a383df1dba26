// Package installer abstracts the external tool used to install a pipeline's
// dependencies. The pipeline handle decides what to run; this package only
// knows how to run it and hand back captured output.
package installer

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// Runner executes an installer invocation and returns its captured stdout
// and stderr. A non-zero process exit is returned as an error alongside
// whatever output was produced.
type Runner interface {
	Run(ctx context.Context, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs a tool resolved from PATH via os/exec.
type ExecRunner struct {
	toolPath string
}

// NewExecRunner resolves the named tool from PATH.
func NewExecRunner(tool string) (*ExecRunner, error) {
	toolPath, err := exec.LookPath(tool)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInstall, "%s executable not found in PATH", tool)
	}
	return &ExecRunner{toolPath: toolPath}, nil
}

// ToolPath returns the resolved executable path.
func (r *ExecRunner) ToolPath() string {
	return r.toolPath
}

// Run invokes the tool with the given arguments.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, r.toolPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
