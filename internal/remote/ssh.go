package remote

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SSHSyncer transfers files with scp and rsync over ssh.
type SSHSyncer struct {
	host   string
	runner CommandRunner
}

// NewSSHSyncer builds a syncer for host. A nil runner uses ExecRunner.
func NewSSHSyncer(host string, runner CommandRunner) (*SSHSyncer, error) {
	if strings.TrimSpace(host) == "" {
		return nil, ErrMissingHost
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &SSHSyncer{host: host, runner: runner}, nil
}

// PullCatalog copies the remote catalog file to localPath.
func (s *SSHSyncer) PullCatalog(ctx context.Context, remotePath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local catalog dir: %w", err)
	}
	out, err := s.runner.Run(ctx, "scp", "-q", s.remote(remotePath), localPath)
	if err != nil {
		if strings.Contains(string(out), "No such file or directory") {
			return fmt.Errorf("%w: %s", ErrRemoteCatalogMissing, remotePath)
		}
		return commandError("pull catalog", out, err)
	}
	return nil
}

// PushDirectory mirrors localDir into remoteDir, creating remoteDir first.
// Remote files that no longer exist locally are left in place.
func (s *SSHSyncer) PushDirectory(ctx context.Context, localDir, remoteDir string) error {
	if out, err := s.runner.Run(ctx, "ssh", s.host, "mkdir", "-p", "--", shellQuote(remoteDir)); err != nil {
		return commandError("create remote dir", out, err)
	}
	src := strings.TrimSuffix(localDir, "/") + "/"
	dst := s.remote(strings.TrimSuffix(remoteDir, "/") + "/")
	if out, err := s.runner.Run(ctx, "rsync", "-az", "--protect-args", src, dst); err != nil {
		return commandError("push directory", out, err)
	}
	return nil
}

// PushCatalog uploads the local catalog file to remotePath.
func (s *SSHSyncer) PushCatalog(ctx context.Context, localPath, remotePath string) error {
	if out, err := s.runner.Run(ctx, "ssh", s.host, "mkdir", "-p", "--", shellQuote(filepath.Dir(remotePath))); err != nil {
		return commandError("create remote catalog dir", out, err)
	}
	if out, err := s.runner.Run(ctx, "scp", "-q", localPath, s.remote(remotePath)); err != nil {
		return commandError("push catalog", out, err)
	}
	return nil
}

// ListDirectory returns the file names directly inside remoteDir. A missing directory
// lists as empty.
func (s *SSHSyncer) ListDirectory(ctx context.Context, remoteDir string) ([]string, error) {
	out, err := s.runner.Run(ctx, "ssh", s.host, "ls", "-1A", "--", shellQuote(remoteDir))
	if err != nil {
		if strings.Contains(string(out), "No such file or directory") {
			return nil, nil
		}
		return nil, commandError("list remote dir", out, err)
	}
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// remote builds a host:path operand for scp and rsync. The path is passed verbatim:
// scp over SFTP and rsync --protect-args do not run it through the remote shell.
func (s *SSHSyncer) remote(path string) string {
	return s.host + ":" + path
}

// shellQuote quotes a path for the remote shell; plain paths pass through unchanged.
func shellQuote(path string) string {
	if path != "" && strings.IndexFunc(path, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return path
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func commandError(op string, out []byte, err error) error {
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %s", op, err, msg)
}
