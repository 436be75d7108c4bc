package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sttnote/log"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type PausedMsg struct{ Paused bool }
type ElapsedMsg struct{ Seconds int }
type LevelMsg struct{ Level int }
type StatusMsg struct{ Text string }
type ErrorMsg struct{ Text string }
type ProgressMsg struct{ Index, Total int }
type TranscriptMsg struct{ Text string }
type DocumentMsg struct{ Text string }
type CopiedMsg struct{}
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

var (
	styleRec      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	stylePaused   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleIdle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMeterOn  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterHot = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleInfo     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleText     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleCopied   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type tuiModel struct {
	app *app

	recording bool
	paused    bool
	elapsed   int
	level     float64
	frame     int

	statusLine   string
	errorLine    string
	progressLine string
	document     string
	copied       bool
	msgCount     int

	providerLine string
	deviceLine   string

	width, height int
}

func newTUIProgram(a *app, provider, device string) *tea.Program {
	if device == "" {
		device = "system default"
	}
	m := tuiModel{
		app:          a,
		providerLine: "[flac | " + provider + "]",
		deviceLine:   "mic: " + device,
		statusLine:   "Ready",
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func runTUI(a *app, provider, device string, sigChan <-chan os.Signal) {
	tuiMu.Lock()
	tuiProgram = newTUIProgram(a, provider, device)
	p := tuiProgram
	tuiMu.Unlock()

	go func() {
		<-sigChan
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		os.Exit(1)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// appCmd runs an app action off the update loop so slow work (stop,
// encode, network) never blocks rendering.
func appCmd(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", " ":
			return m, appCmd(m.app.toggleRecord)
		case "p":
			return m, appCmd(m.app.togglePause)
		case "c":
			return m, appCmd(m.app.copyDocument)
		case "e":
			return m, appCmd(func() { m.app.exportDocument("") })
		case "f":
			return m, appCmd(m.app.refineDocument)
		case "x":
			return m, appCmd(m.app.clearDocument)
		}

	case tickMsg:
		m.frame++
		if !m.recording || m.paused {
			m.level *= 0.8
		}
		return m, tuiTick()

	case RecordingStartMsg:
		m.recording = true
		m.paused = false
		m.elapsed = 0
		m.level = 0
		m.errorLine = ""
		m.progressLine = ""

	case RecordingStopMsg:
		m.recording = false
		m.paused = false
		m.level = 0

	case PausedMsg:
		m.paused = msg.Paused

	case ElapsedMsg:
		m.elapsed = msg.Seconds

	case LevelMsg:
		if m.recording && !m.paused {
			m.level = m.level*0.6 + float64(msg.Level)*0.4
		}

	case StatusMsg:
		m.statusLine = msg.Text
		m.copied = false

	case ErrorMsg:
		m.errorLine = msg.Text

	case ProgressMsg:
		m.progressLine = fmt.Sprintf("chunk %d/%d", msg.Index, msg.Total)

	case TranscriptMsg:
		m.msgCount++
		m.progressLine = ""

	case DocumentMsg:
		m.document = msg.Text

	case CopiedMsg:
		m.copied = true
	}
	return m, nil
}

const leftWidth = 34

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var infoLines []string

	switch {
	case m.recording && m.paused:
		infoLines = append(infoLines, stylePaused.Render(fmt.Sprintf("‖ PAUSED %ds", m.elapsed)))
	case m.recording:
		infoLines = append(infoLines, styleRec.Render(fmt.Sprintf("● REC %ds", m.elapsed)))
	default:
		infoLines = append(infoLines, styleIdle.Render("○ IDLE"))
	}

	infoLines = append(infoLines, renderMeter(m.level, m.recording && !m.paused))
	infoLines = append(infoLines, "")
	infoLines = append(infoLines, styleInfo.Render(m.providerLine))
	infoLines = append(infoLines, styleDim.Render(m.deviceLine))

	if m.progressLine != "" {
		infoLines = append(infoLines, "")
		infoLines = append(infoLines, styleInfo.Render(m.progressLine))
	}

	infoLines = append(infoLines, "")
	status := m.statusLine
	if m.copied {
		infoLines = append(infoLines, styleCopied.Render(status))
	} else {
		infoLines = append(infoLines, styleInfo.Render(status))
	}
	if m.errorLine != "" {
		for _, line := range wrapText(m.errorLine, leftWidth-2) {
			infoLines = append(infoLines, styleError.Render(line))
		}
	}

	infoLines = append(infoLines, "")
	infoLines = append(infoLines, styleHelp.Render("r record/stop  p pause"))
	infoLines = append(infoLines, styleHelp.Render("c copy  e export  f refine"))
	infoLines = append(infoLines, styleHelp.Render("x clear  q quit"))
	infoLines = append(infoLines, styleHelp.Render("stt-notepad "+version))

	docWidth := m.width - leftWidth - 1
	if docWidth < 20 {
		docWidth = 20
	}
	wrapWidth := docWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var docContent strings.Builder
	if m.document != "" {
		title := styleInfo.Render(fmt.Sprintf("Notepad (%d transcriptions)", m.msgCount))
		docContent.WriteString(title + "\n\n")
		for _, para := range strings.Split(m.document, "\n") {
			if para == "" {
				docContent.WriteString("\n")
				continue
			}
			for _, line := range wrapText(para, wrapWidth) {
				docContent.WriteString(styleText.Render(line) + "\n")
			}
		}
	} else {
		docContent.WriteString(styleDim.Render("No transcriptions yet"))
	}

	infoPanel := lipgloss.NewStyle().
		Width(leftWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(strings.Join(infoLines, "\n"))

	docPanel := lipgloss.NewStyle().
		Width(docWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(docContent.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, infoPanel, docPanel)
}

// renderMeter draws the input level as a 25-cell bar. Level is 0-100.
func renderMeter(level float64, active bool) string {
	const cells = 25
	filled := int(level / 100 * cells)
	if filled > cells {
		filled = cells
	}
	if !active {
		filled = 0
	}

	var b strings.Builder
	hot := cells * 4 / 5
	for i := 0; i < cells; i++ {
		switch {
		case i >= filled:
			b.WriteString(styleDim.Render("░"))
		case i >= hot:
			b.WriteString(styleMeterHot.Render("█"))
		default:
			b.WriteString(styleMeterOn.Render("█"))
		}
	}
	return b.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
