// Command hallucinator-check is a minimal demonstration binary: it reads
// one reference title per line on stdin, reports progress on stderr, and
// prints every verdict plus a summary once all references are checked. The PDF extraction pipeline, TUI, and full CLI-flags/report
// exporter are external collaborators, not part of this binary.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	hallucinator "github.com/CristianCantoro/hallucinator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hallucinator-check:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := hallucinator.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	refs, err := readReferences(os.Stdin)
	if err != nil {
		return fmt.Errorf("read references: %w", err)
	}
	if len(refs) == 0 {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, stats, err := hallucinator.CheckReferences(ctx, refs, cfg, printEvent)
	if err != nil {
		return fmt.Errorf("check references: %w", err)
	}

	for _, r := range results {
		fmt.Printf("%-8s %s\n", r.Status, r.Title)
	}
	fmt.Printf("\n%d total, %d verified, %d not found, %d author mismatch\n",
		stats.Total, stats.Verified, stats.NotFound, stats.AuthorMismatch)
	return nil
}

func readReferences(r io.Reader) ([]hallucinator.Reference, error) {
	var refs []hallucinator.Reference
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		title := line
		refs = append(refs, hallucinator.Reference{RawCitation: line, Title: &title})
	}
	return refs, scanner.Err()
}

func printEvent(ev hallucinator.ProgressEvent) {
	switch ev.Kind {
	case hallucinator.KindChecking:
		fmt.Fprintf(os.Stderr, "[%d/%d] checking %q\n", ev.Index+1, ev.Total, ev.Title)
	case hallucinator.KindWarning:
		fmt.Fprintf(os.Stderr, "warning: %s (%v)\n", ev.Message, ev.FailedDBs)
	}
}
