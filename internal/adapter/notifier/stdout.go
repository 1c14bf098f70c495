package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// StdoutNotifier prints findings as text blocks.
type StdoutNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutNotifier creates a StdoutNotifier. A nil writer means os.Stdout.
func NewStdoutNotifier(out io.Writer) *StdoutNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &StdoutNotifier{out: out}
}

// Notify prints the finding details.
func (n *StdoutNotifier) Notify(_ context.Context, findings []domain.Finding) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, f := range findings {
		_, err := fmt.Fprintf(n.out,
			"--- HIGH RISK EVENT ---\nEvent: %s\nTime: %s\nSource IP: %s\nSource: %s\nStrategy: %s\nReasons: %s\n-----------------------\n",
			f.EventName,
			f.EventTime,
			f.SourceIP,
			f.Source,
			f.Strategy,
			strings.Join(f.Reasons, "; "),
		)
		if err != nil {
			return fmt.Errorf("failed to write finding: %w", err)
		}
	}
	return nil
}
