package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress represents an active progress indicator
type Progress struct {
	printer      *Printer
	message      string
	startTime    time.Time
	done         chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	spinnerIndex int
}

// Spinner characters for animation
var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 100 * time.Millisecond

// StartProgress creates and starts a new progress indicator. Without color
// support nothing is drawn and the returned Progress only tracks the message.
func (p *Printer) StartProgress(message string) *Progress {
	progress := &Progress{
		printer:   p,
		message:   message,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
	if !p.useColor {
		close(progress.done)
		return progress
	}

	progress.render()
	progress.wg.Add(1)
	go progress.animate()
	return progress
}

// UpdateMessage updates the progress message
func (p *Progress) UpdateMessage(message string) {
	p.mu.Lock()
	p.message = message
	p.mu.Unlock()

	if p.running() {
		p.render()
	}
}

// Message returns the current message
func (p *Progress) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// Elapsed returns the time since the indicator started
func (p *Progress) Elapsed() time.Duration {
	return time.Since(p.startTime)
}

// Stop stops the progress indicator and clears the line. It is safe to call
// more than once.
func (p *Progress) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		return
	default:
		close(p.done)
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.printer.mu.Lock()
	p.printer.clearLiveLine()
	p.printer.mu.Unlock()
}

func (p *Progress) running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// animate runs the spinner animation in a goroutine
func (p *Progress) animate() {
	defer p.wg.Done()

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.spinnerIndex++
			p.mu.Unlock()
			p.render()
		}
	}
}

// render draws the current progress state on stderr
func (p *Progress) render() {
	p.mu.Lock()
	message := p.message
	spinner := spinnerChars[p.spinnerIndex%len(spinnerChars)]
	p.mu.Unlock()

	line := fmt.Sprintf("%s %s %s",
		p.printer.styles.spinner.Render(spinner),
		message,
		p.printer.styles.detail.Render("["+formatDuration(time.Since(p.startTime))+"]"))

	pr := p.printer
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if !p.running() {
		return
	}
	_, _ = io.WriteString(pr.err, "\r"+line+"\033[K")
	pr.liveLine = true
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.0fs", d.Seconds())
}
