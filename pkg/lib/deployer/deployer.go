package deployer

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

const (
	// StatFileName is the bookkeeping file the wrapped executable expects in its temp dir.
	StatFileName = "stat"

	dirMode        = 0o755
	privateDirMode = 0o700
	stagingMode    = 0o600
	executableMode = 0o700
)

// Reason classifies a deployment failure.
type Reason int

const (
	DirCreationFailed Reason = iota + 1
	WriteFailed
	PermissionFailed
)

func (r Reason) String() string {
	switch r {
	case DirCreationFailed:
		return "DirCreationFailed"
	case WriteFailed:
		return "WriteFailed"
	case PermissionFailed:
		return "PermissionFailed"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// DeployError reports which step failed and the path it was working on.
type DeployError struct {
	Reason Reason
	Path   string
	Err    error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *DeployError) Unwrap() error { return e.Err }

// Layout is the filesystem layout of one supervised executable.
type Layout struct {
	ConfigDir      string
	TempDir        string
	ExecutablePath string
}

// DefaultLayout returns <storageRoot>/<name>, <storageRoot>/<name>/tmp and <privateRoot>/<name>.
func DefaultLayout(storageRoot, privateRoot, name string) Layout {
	configDir := filepath.Join(storageRoot, name)
	return Layout{
		ConfigDir:      configDir,
		TempDir:        filepath.Join(configDir, "tmp"),
		ExecutablePath: filepath.Join(privateRoot, name),
	}
}

// Payload is the source of the executable bytes.
type Payload interface {
	Open() (io.ReadCloser, error)
}

// BytesPayload serves an in-memory (usually embedded) executable.
type BytesPayload []byte

func (p BytesPayload) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p)), nil
}

// FilePayload serves an executable shipped as a file.
type FilePayload string

func (p FilePayload) Open() (io.ReadCloser, error) {
	return os.Open(string(p))
}

// Deployer stages a payload according to a Layout.
type Deployer struct {
	layout Layout
	logger *slog.Logger

	chmod func(name string, mode os.FileMode) error
}

// New creates a Deployer. A nil logger discards output.
func New(layout Layout, logger *slog.Logger) *Deployer {
	return &Deployer{
		layout: layout,
		logger: lib.OrDiscard(logger),
		chmod:  os.Chmod,
	}
}

// Deploy stages payload using layout and returns the executable path.
func Deploy(payload Payload, layout Layout) (string, error) {
	return New(layout, nil).Deploy(payload)
}

// Layout returns the layout the deployer stages into.
func (d *Deployer) Layout() Layout {
	return d.layout
}

// Deploy creates the directories, refreshes the executable and marks it executable.
// On failure nothing is left at the executable path.
func (d *Deployer) Deploy(payload Payload) (string, error) {
	if err := d.ensureDirs(); err != nil {
		return "", err
	}
	d.ensureStatFile()

	target := d.layout.ExecutablePath
	if err := d.stage(payload, target); err != nil {
		return "", err
	}

	if err := d.chmod(target, executableMode); err != nil {
		d.logger.Error("Failed to mark executable", "path", target, "error", err)
		_ = os.Remove(target)
		return "", &DeployError{Reason: PermissionFailed, Path: target, Err: errors.Wrap(err, "chmod")}
	}

	d.logger.Info("Payload deployed", "path", target)
	return target, nil
}

func (d *Deployer) ensureDirs() error {
	for _, dir := range []string{d.layout.ConfigDir, d.layout.TempDir} {
		if err := ensureDir(dir, dirMode); err != nil {
			d.logger.Error("Failed to prepare directory", "dir", dir, "error", err)
			return &DeployError{Reason: DirCreationFailed, Path: dir, Err: err}
		}
	}
	return nil
}

func ensureDir(dir string, mode os.FileMode) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "stat %s", dir)
	}
	if !fi.IsDir() {
		return errors.Errorf("%s is not a directory", dir)
	}
	return nil
}

// ensureStatFile is best effort: the wrapped executable complains on first
// run when the file is missing, but it still works.
func (d *Deployer) ensureStatFile() {
	stat := filepath.Join(d.layout.TempDir, StatFileName)
	f, err := os.OpenFile(stat, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		d.logger.Warn("Failed to create stat file", "path", stat, "error", err)
		return
	}
	_ = f.Close()
}

func (d *Deployer) stage(payload Payload, target string) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, privateDirMode); err != nil {
		return &DeployError{Reason: WriteFailed, Path: target, Err: errors.Wrapf(err, "mkdir %s", dir)}
	}

	src, err := payload.Open()
	if err != nil {
		return &DeployError{Reason: WriteFailed, Path: target, Err: errors.Wrap(err, "open payload")}
	}
	defer src.Close()

	staging := filepath.Join(dir, "."+filepath.Base(target)+"-"+lib.NewID())
	if err := writeFile(staging, src); err != nil {
		_ = os.Remove(staging)
		d.logger.Error("Failed to write payload", "path", staging, "error", err)
		return &DeployError{Reason: WriteFailed, Path: target, Err: err}
	}

	// Rename replaces any stale file atomically, even one that is still being executed.
	if err := os.Rename(staging, target); err != nil {
		_ = os.Remove(staging)
		return &DeployError{Reason: WriteFailed, Path: target, Err: errors.Wrap(err, "rename")}
	}
	return nil
}

func writeFile(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, stagingMode)
	if err != nil {
		return errors.Wrap(err, "create")
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "copy")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "sync")
	}
	return errors.Wrap(f.Close(), "close")
}
