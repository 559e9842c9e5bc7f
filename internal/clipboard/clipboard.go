// Package clipboard provides the reference domain.ClipboardEffector
// backed by the OS clipboard, the one named external collaborator
// spec.md carves the clipboard/auto-paste effector out to.
package clipboard

import (
	"context"

	"github.com/atotto/clipboard"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
)

// Compile-time interface check.
var _ domain.ClipboardEffector = (*Effector)(nil)

// Effector writes recognized text to the OS clipboard via
// github.com/atotto/clipboard, which shells out to the platform's
// clipboard utility (pbcopy, xclip/xsel, or the Windows clipboard API)
// under the hood.
type Effector struct {
	log *logger.Logger
}

// New creates a clipboard effector.
func New(log *logger.Logger) *Effector {
	return &Effector{log: log}
}

// Write copies text to the OS clipboard. ctx is accepted to satisfy
// domain.ClipboardEffector's contract with every other core
// collaborator, though the underlying library call is itself
// synchronous and non-cancellable.
func (e *Effector) Write(ctx context.Context, text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return domain.NewError(domain.KindResource, "clipboard: write failed", err)
	}
	e.log.Debug("clipboard: wrote %d characters", len(text))
	return nil
}
