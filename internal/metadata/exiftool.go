package metadata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const exifToolCloseTimeout = 5 * time.Second

// ExifTool is a TagReader backed by one long-lived `exiftool -stay_open` process.
// Arguments go over stdin one per line and each request ends with a numbered
// -execute, whose {readyN} marker terminates the response on stdout.
type ExifTool struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	seq    int
	waitCh chan error
}

// StartExifTool launches the external tool.
func StartExifTool(binary string) (*ExifTool, error) {
	cmd := exec.Command(binary, "-stay_open", "True", "-@", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("exiftool stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("exiftool stdout: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}

	et := &ExifTool{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		waitCh: make(chan error, 1),
	}
	go func() { et.waitCh <- cmd.Wait() }()
	return et, nil
}

// ReadTags runs one request. Protocol or process failures wrap ErrWorkerFailed.
func (e *ExifTool) ReadTags(ctx context.Context, path string) (Tags, error) {
	if strings.ContainsAny(path, "\r\n") {
		return nil, fmt.Errorf("%w: %q", ErrUnsafePath, path)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	ready := fmt.Sprintf("{ready%d}", e.seq)
	args := []string{"-json", "-n", "-charset", "filename=utf8", path, fmt.Sprintf("-execute%d", e.seq)}

	if _, err := io.WriteString(e.stdin, strings.Join(args, "\n")+"\n"); err != nil {
		return nil, fmt.Errorf("%w: write request: %v", ErrWorkerFailed, err)
	}

	type response struct {
		body []byte
		err  error
	}
	respCh := make(chan response, 1)
	go func() {
		var buf bytes.Buffer
		for {
			line, err := e.stdout.ReadString('\n')
			if strings.TrimSpace(line) == ready {
				respCh <- response{body: buf.Bytes()}
				return
			}
			buf.WriteString(line)
			if err != nil {
				respCh <- response{err: err}
				return
			}
		}
	}()

	var resp response
	select {
	case resp = <-respCh:
	case <-ctx.Done():
		_ = e.cmd.Process.Kill()
		<-respCh
		return nil, fmt.Errorf("%w: %v", ErrWorkerFailed, ctx.Err())
	}
	if resp.err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrWorkerFailed, resp.err)
	}

	return decodeExifToolJSON(resp.body)
}

func decodeExifToolJSON(body []byte) (Tags, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrNoTags
	}
	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode exiftool output: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoTags
	}
	tags := Tags(records[0])
	if msg, ok := tags["Error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("exiftool: %s", msg)
	}
	return tags, nil
}

// Close asks the process to exit and waits briefly before killing it.
func (e *ExifTool) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, _ = io.WriteString(e.stdin, "-stay_open\nFalse\n")
	_ = e.stdin.Close()

	select {
	case err := <-e.waitCh:
		if err != nil {
			return fmt.Errorf("exiftool exit: %w", err)
		}
		return nil
	case <-time.After(exifToolCloseTimeout):
		_ = e.cmd.Process.Kill()
		return fmt.Errorf("exiftool did not exit within %s", exifToolCloseTimeout)
	}
}
