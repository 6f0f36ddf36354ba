// Package ui provides an interactive console for the announcer: type a line,
// hear it spoken, and watch what the announcer did with it.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/fheroes2/gameshell/announce"
	"github.com/fheroes2/gameshell/speech"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show messages like "queued"
	chromeHeight         = 3               // header, status bar and input
)

// Announcer is what the console drives.
type Announcer interface {
	Announce(raw string)
	State() speech.State
	Stats() announce.Stats
}

// NewProgram returns a new Tea program.
func NewProgram(a Announcer, cfg Config) *tea.Program {
	log.Debug("starting console", "history", cfg.HistorySize, "mouse", cfg.EnableMouse)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(a, cfg), opts...)
}

type (
	tickMsg                 time.Time
	statusMessageTimeoutMsg struct{}
)

type model struct {
	cfg Config
	ann Announcer
	now func() time.Time

	width  int
	height int

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	history  history

	state         speech.State
	stats         announce.Stats
	statusMessage string
}

func newModel(a Announcer, cfg Config) model {
	cfg = cfg.withDefaults()

	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "+queued, ~low pitch, or plain text to interrupt"
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sp.Style.Foreground(yellow)

	return model{
		cfg:      cfg,
		ann:      a,
		now:      time.Now,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(0, 0),
		history:  history{limit: cfg.HistorySize},
		state:    a.State(),
		stats:    a.Stats(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.tick())
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.cfg.RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) settling() bool {
	return !m.state.Terminal()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 0)
		m.input.Width = max(msg.Width-runewidth.StringWidth(m.input.Prompt)-1, 1)
		m.refreshHistory()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			cmd := m.submit()
			return m, cmd
		case "ctrl+l":
			m.history.clear()
			m.refreshHistory()
			return m, nil
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tickMsg:
		m.state = m.ann.State()
		m.stats = m.ann.Stats()
		return m, m.tick()

	case spinner.TickMsg:
		if !m.settling() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line to the announcer. The raw line goes out
// unchanged so the announcer applies its own prefix rules.
func (m *model) submit() tea.Cmd {
	raw := m.input.Value()
	m.input.Reset()

	d := announce.Parse(raw)
	if d.Text == "" {
		return nil
	}
	m.ann.Announce(raw)
	m.history.add(entry{at: m.now(), directive: d})
	m.refreshHistory()

	if m.ann.State() == speech.StateReady {
		return m.showStatusMessage("sent")
	}
	return m.showStatusMessage("speech not ready, dropped")
}

func (m *model) showStatusMessage(s string) tea.Cmd {
	m.statusMessage = s
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{}
	})
}

func (m *model) refreshHistory() {
	m.viewport.SetContent(m.history.render(m.width, m.cfg.ShowTimestamps))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if m.width == 0 {
		return ""
	}
	var b strings.Builder
	m.headerView(&b)
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')
	m.statusBarView(&b)
	b.WriteString(m.input.View())
	return b.String()
}

func (m model) headerView(b *strings.Builder) {
	logo := logoStyle(" gameshell ")
	state := stateView(m.state.String())
	if m.settling() {
		state = m.spinner.View() + state
	}
	help := helpStyle(" enter speak · ctrl+l clear · esc quit")
	line := logo + " " + state + help
	fmt.Fprintln(b, truncate.StringWithTail(line, uint(max(m.width, 0)), ellipsis)) //nolint:gosec
}

func (m model) statusBarView(b *strings.Builder) {
	var note string
	if m.statusMessage != "" {
		note = statusBarMessageStyle(" " + m.statusMessage + " ")
	} else {
		s := m.stats
		note = statusBarNoteStyle(fmt.Sprintf(
			" spoken %d  repeated %d  not ready %d  dropped %d  failed %d ",
			s.Spoken, s.Deduplicated, s.NotReady, s.Overflow, s.Failed,
		))
	}
	fmt.Fprintln(b, truncate.StringWithTail(note, uint(max(m.width, 0)), ellipsis)) //nolint:gosec
}
