package notepad

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// Separator sits between transcriptions appended to the same document.
const Separator = "\n\n--- New Transcription ---\n\n"

// ErrEmptyDocument is returned when there is nothing to copy or export.
var ErrEmptyDocument = errors.New("document is empty")

// Document is the accumulated notepad text. Transcriptions append to
// it across recordings until the user clears it.
type Document struct {
	mu   sync.Mutex
	text string
}

func NewDocument() *Document { return &Document{} }

// Append adds a transcription to the document. The separator is only
// inserted when there is existing text, so a fresh document starts
// with the transcript itself.
func (d *Document) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text == "" {
		d.text = text
		return
	}
	d.text += Separator + text
}

func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// SetText replaces the whole document, used when a refinement pass
// rewrites the accumulated text.
func (d *Document) SetText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
}

func (d *Document) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = ""
}

func (d *Document) Empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text == ""
}

// CopyToClipboard puts the whole document on the system clipboard.
func (d *Document) CopyToClipboard() error {
	text := d.Text()
	if text == "" {
		return ErrEmptyDocument
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	return nil
}

// ExportFilename is the default markdown export name for the given
// time, e.g. 30082026_1415_transcribed.md.
func ExportFilename(now time.Time) string {
	return now.Format("02012006_1504") + "_transcribed.md"
}

// Export writes the document to path as markdown. A missing .md
// extension is added rather than rejected.
func (d *Document) Export(path string) (string, error) {
	text := d.Text()
	if text == "" {
		return "", ErrEmptyDocument
	}
	if !strings.HasSuffix(strings.ToLower(path), ".md") {
		path += ".md"
	}
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		return "", fmt.Errorf("exporting document: %w", err)
	}
	return path, nil
}
