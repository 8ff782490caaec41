package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/adibenedetto117/jellychub/config"
	"github.com/adibenedetto117/jellychub/reader"
	"github.com/adibenedetto117/jellychub/skin"
	"github.com/adibenedetto117/jellychub/skin/desktop"
)

// snapshotMsg carries a session state change into the update loop.
type snapshotMsg reader.Snapshot

// inputMode is what the keyboard currently drives.
type inputMode int

const (
	modeRead inputMode = iota
	modeSearch
	modeGoto
)

var (
	statusStyle  = lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("252")).Padding(0, 1)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	matchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("221"))
	contentStyle = lipgloss.NewStyle().Padding(1, 2)
)

type model struct {
	ctx     context.Context
	cfg     config.Config
	name    string
	session *reader.Session

	keys *desktop.Skin

	snap    reader.Snapshot
	mode    inputMode
	input   textinput.Model
	spin    spinner.Model
	width   int
	height  int
	chrome  bool
	styled  bool // theme and font size pushed once after first ready
	flash   string
	lastErr error
}

func newModel(ctx context.Context, cfg config.Config, name string) *model {
	ti := textinput.New()
	ti.CharLimit = 128
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &model{
		ctx:    ctx,
		cfg:    cfg,
		name:   name,
		input:  ti,
		spin:   sp,
		chrome: true,
		width:  80,
		height: 24,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tea.SetWindowTitle("jellyread"))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		snap := reader.Snapshot(msg)
		prev := m.snap.Phase
		m.snap = snap
		if snap.Phase == reader.PhaseReady && prev != reader.PhaseReady && !m.styled {
			m.styled = true
			return m, m.applyAppearance()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case modeSearch, modeGoto:
		switch key {
		case "esc":
			m.mode = modeRead
			m.input.Blur()
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			mode := m.mode
			m.mode = modeRead
			m.input.Blur()
			if text == "" {
				return m, nil
			}
			if mode == modeSearch {
				m.record(m.keys.Search(text))
			} else {
				m.record(m.keys.GotoPageInput(text))
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	// Read mode. Lazily bind the skin; the session is attached right
	// after program construction.
	if m.keys == nil {
		if m.session == nil {
			return m, nil
		}
		m.keys = desktop.New(m.session)
	}

	switch key {
	case ":":
		return m, m.openInput(modeGoto, "page")
	case "b":
		if _, err := m.session.AddBookmark(m.ctx, fmt.Sprintf("Page %d", m.snap.CurrentUnit)); err != nil {
			m.lastErr = err
		} else {
			m.flash = "bookmarked"
		}
		return m, nil
	case "r":
		m.record(m.session.Retry(m.ctx))
		return m, nil
	}

	action, err := m.keys.HandleKey(key)
	m.record(err)
	switch action {
	case skin.ActionBack:
		return m, tea.Quit
	case skin.ActionOpenSearch:
		return m, m.openInput(modeSearch, "search")
	case skin.ActionToggleChrome:
		m.chrome = !m.chrome
	}
	return m, nil
}

func (m *model) openInput(mode inputMode, prompt string) tea.Cmd {
	m.mode = mode
	m.input.Prompt = prompt + ": "
	m.input.SetValue("")
	return m.input.Focus()
}

// record keeps the last intent error for the status line; a new intent
// clears the previous one.
func (m *model) record(err error) {
	m.lastErr = err
	if err == nil {
		m.flash = ""
	}
}

func (m *model) applyAppearance() tea.Cmd {
	session := m.session
	theme := m.cfg.Reader.Theme
	font := m.cfg.Reader.FontSize
	return func() tea.Msg {
		session.SetTheme(theme)
		if font > 0 && font != 100 {
			session.SetFontSize(font)
		}
		return nil
	}
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(m.body())
	if m.chrome {
		b.WriteString("\n")
		b.WriteString(m.statusLine())
	}
	if m.mode != modeRead {
		b.WriteString("\n")
		b.WriteString(m.input.View())
	}
	return b.String()
}

func (m *model) body() string {
	snap := m.snap
	switch snap.Phase {
	case reader.PhaseDownloading:
		return contentStyle.Render(fmt.Sprintf("%s downloading %s  %3.0f%%", m.spin.View(), m.name, snap.Progress*100))
	case reader.PhaseExtracting:
		return contentStyle.Render(fmt.Sprintf("%s extracting pages  %3.0f%%", m.spin.View(), snap.Progress*100))
	case reader.PhaseLoading:
		return contentStyle.Render(m.spin.View() + " preparing document")
	case reader.PhaseError:
		return contentStyle.Render(errorStyle.Render("error: ") + snap.Message + dimStyle.Render("  (r to retry)"))
	case reader.PhaseUnsupported:
		return contentStyle.Render(errorStyle.Render("unsupported: ") + snap.Message)
	case "":
		return contentStyle.Render(m.spin.View() + " opening")
	}

	// Ready or searching. PDFs get the extracted page text inline; EPUB
	// and CBZ render only in the browser surface.
	if snap.Format == reader.FormatPDF && m.session != nil {
		text := m.session.PageText(snap.CurrentUnit)
		if text != "" {
			return contentStyle.Width(m.width).Render(text)
		}
	}
	return contentStyle.Render(dimStyle.Render("rendering in browser surface"))
}

func (m *model) statusLine() string {
	snap := m.snap

	left := titleStyle.Render(m.name)
	mid := fmt.Sprintf("%s  %s", snap.Format, snap.Phase)
	if snap.TotalUnits > 0 {
		mid += fmt.Sprintf("  %d/%d", snap.CurrentUnit, snap.TotalUnits)
	}
	if snap.LocationsPending {
		mid += dimStyle.Render("  locating…")
	}
	if snap.SearchActive {
		pos := 0
		for i, p := range snap.SearchPages {
			if p == snap.SearchCurrent {
				pos = i + 1
				break
			}
		}
		mid += matchStyle.Render(fmt.Sprintf("  match %d/%d", pos, len(snap.SearchPages)))
	}

	right := m.flash
	if m.lastErr != nil {
		right = errorStyle.Render(m.lastErr.Error())
	}

	line := left + "  " + mid
	if right != "" {
		line += "  " + right
	}
	return statusStyle.Width(m.width).Render(line)
}
