package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Summary is shown to the operator before anything is written.
type Summary struct {
	Mode       string
	DryRun     bool
	SourceDir  string
	OutputDir  string
	Catalog    string
	Transfer   string
	SyncTarget string
	Candidates int
}

// String renders the summary as aligned lines.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode:        %s\n", s.Mode)
	fmt.Fprintf(&b, "dry run:     %t\n", s.DryRun)
	fmt.Fprintf(&b, "source:      %s\n", s.SourceDir)
	fmt.Fprintf(&b, "output:      %s\n", s.OutputDir)
	fmt.Fprintf(&b, "catalog:     %s\n", s.Catalog)
	fmt.Fprintf(&b, "transfer:    %s\n", s.Transfer)
	if s.SyncTarget != "" {
		fmt.Fprintf(&b, "sync target: %s\n", s.SyncTarget)
	}
	fmt.Fprintf(&b, "candidates:  %d\n", s.Candidates)
	return b.String()
}

// Confirmer decides whether a run may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, s Summary) (bool, error)
}

// AutoConfirm approves every run.
type AutoConfirm struct{}

// Confirm implements Confirmer.
func (AutoConfirm) Confirm(context.Context, Summary) (bool, error) {
	return true, nil
}

// PromptConfirmer prints the summary and reads a y/yes answer.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Confirmer. Anything other than y or yes declines.
func (p PromptConfirmer) Confirm(ctx context.Context, s Summary) (bool, error) {
	if _, err := fmt.Fprintf(p.Out, "%sproceed? [y/N] ", s); err != nil {
		return false, err
	}

	answer := make(chan string, 1)
	errc := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && line == "" {
			errc <- err
			return
		}
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errc:
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("read confirmation: %w", err)
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
