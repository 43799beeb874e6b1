// Package tui provides the interactive Bubble Tea chat interface for cchat.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/cchat/internal/chat"
	"github.com/theirongolddev/cchat/internal/cli"
	"github.com/theirongolddev/cchat/internal/config"
	"github.com/theirongolddev/cchat/internal/exchange"
	"github.com/theirongolddev/cchat/internal/secret"
	"github.com/theirongolddev/cchat/internal/tui/components"
	"github.com/theirongolddev/cchat/internal/tui/theme"
	"github.com/theirongolddev/cchat/internal/usage"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// ChunkMsg carries one streamed text fragment from the exchange goroutine.
type ChunkMsg struct {
	Text string
}

// DoneMsg is sent when an exchange completes. PersistErr is non-nil when the
// outcome could not be durably written; the response is still shown.
type DoneMsg struct {
	Msg        chat.Message
	Cost       float64
	PersistErr error
}

// ErrMsg is sent when an exchange fails. Nothing was persisted.
type ErrMsg struct {
	Err error
}

type renderTickMsg struct{}
type clearNoticeMsg struct{}

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

const (
	minTerminalWidth = 60
	sidebarWidth     = 30
	inputHeight      = 3

	// Streamed chunks repaint the transcript at most this often.
	renderThrottle = 120 * time.Millisecond

	noticeTimeout = 4 * time.Second
)

// App is the root Bubble Tea model.
type App struct {
	store      *chat.Store
	ledger     *usage.Ledger
	controller *exchange.Controller
	secrets    secret.Store
	cfg        config.Config

	// Transcript of the active session, plus the in-flight draft. The draft
	// is a plain string: App is copied on every Update, which a non-zero
	// strings.Builder forbids.
	messages []chat.Message
	draft    string

	sessions []chat.SessionInfo
	cursor   int

	// UI state
	width    int
	height   int
	focus    focusArea
	showHelp bool
	notice   string

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	settingsForm *huh.Form
	settingsVals settingsValues
	needSetup    bool

	// Exchange callbacks land here; listenCmd pumps them into Update.
	events       chan tea.Msg
	renderQueued bool
	ready        bool
}

// NewApp creates the chat TUI model.
func NewApp(store *chat.Store, ledger *usage.Ledger, controller *exchange.Controller, secrets secret.Store, cfg config.Config, needSetup bool) App {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	a := App{
		store:      store,
		ledger:     ledger,
		controller: controller,
		secrets:    secrets,
		cfg:        cfg,
		input:      ta,
		spinner:    sp,
		needSetup:  needSetup,
		events:     make(chan tea.Msg, 64),
	}
	a.sessions = store.ListSessions()
	store.NewSession()

	if needSetup {
		a.settingsForm = newSettingsForm(&a.settingsVals, cfg, "")
	}
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		listenCmd(a.events),
		a.spinner.Tick,
		textarea.Blink,
	}
	if a.settingsForm != nil {
		cmds = append(cmds, a.settingsForm.Init())
	}
	return tea.Batch(cmds...)
}

// listenCmd blocks until the next message from the exchange goroutine.
func listenCmd(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		a.refreshTranscript()
		a.viewport.GotoBottom()
		a.ready = true
		if a.settingsForm != nil {
			a.settingsForm = a.settingsForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case ChunkMsg:
		a.draft += msg.Text
		cmds := []tea.Cmd{listenCmd(a.events)}
		if !a.renderQueued {
			a.renderQueued = true
			cmds = append(cmds, tea.Tick(renderThrottle, func(time.Time) tea.Msg {
				return renderTickMsg{}
			}))
		}
		return a, tea.Batch(cmds...)

	case renderTickMsg:
		a.renderQueued = false
		a.refreshTranscript()
		a.viewport.GotoBottom()
		return a, nil

	case DoneMsg:
		a.draft = ""
		a.renderQueued = false
		a.messages = a.store.Messages()
		a.sessions = a.store.ListSessions()
		a.refreshTranscript()
		a.viewport.GotoBottom()
		cmds := []tea.Cmd{listenCmd(a.events)}
		if msg.PersistErr != nil {
			cmds = append(cmds, a.setNotice("response shown but not saved: "+msg.PersistErr.Error()))
		}
		return a, tea.Batch(cmds...)

	case ErrMsg:
		a.draft = ""
		a.renderQueued = false
		a.refreshTranscript()
		a.viewport.GotoBottom()
		return a, tea.Batch(listenCmd(a.events), a.setNotice(msg.Err.Error()))

	case clearNoticeMsg:
		a.notice = ""
		return a, nil

	case spinner.TickMsg:
		if a.controller.Busy() {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			a.viewport.ScrollUp(3)
		case tea.MouseButtonWheelDown:
			a.viewport.ScrollDown(3)
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)
	}

	// Forward unhandled messages to the settings form (cursor blinks, etc.)
	if a.settingsForm != nil {
		return a.updateSettingsForm(msg)
	}

	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global: quit
	if key == "ctrl+c" {
		return a, tea.Quit
	}

	// Settings form intercepts all keys while open
	if a.settingsForm != nil {
		return a.updateSettingsForm(msg)
	}

	// Dismiss help on any key
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "ctrl+s":
		a.settingsVals = settingsValues{}
		a.settingsForm = newSettingsForm(&a.settingsVals, a.cfg, a.storedKey())
		if a.width > 0 {
			a.settingsForm = a.settingsForm.WithWidth(a.width).WithHeight(a.height)
		}
		return a, a.settingsForm.Init()

	case "ctrl+n":
		return a.newSession()

	case "tab":
		if a.focus == focusInput {
			a.focus = focusSidebar
			a.input.Blur()
		} else {
			a.focus = focusInput
			a.input.Focus()
		}
		return a, nil

	case "pgup":
		a.viewport.ScrollUp(a.viewport.Height / 2)
		return a, nil

	case "pgdown":
		a.viewport.ScrollDown(a.viewport.Height / 2)
		return a, nil
	}

	if a.focus == focusSidebar {
		return a.updateSidebarKey(key)
	}

	if key == "enter" {
		return a.sendCurrent()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a App) updateSidebarKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		return a, tea.Quit
	case "?":
		a.showHelp = true
		return a, nil
	case "j", "down":
		if a.cursor < len(a.sessions)-1 {
			a.cursor++
		}
		return a, nil
	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil
	case "g":
		a.cursor = 0
		return a, nil
	case "G":
		if len(a.sessions) > 0 {
			a.cursor = len(a.sessions) - 1
		}
		return a, nil
	case "enter":
		return a.openSelected()
	case "n":
		return a.newSession()
	case "d":
		return a.deleteSelected()
	case "esc":
		a.focus = focusInput
		a.input.Focus()
		return a, nil
	}
	return a, nil
}

// sendCurrent appends the input as a user turn and dispatches one exchange.
func (a App) sendCurrent() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return a, nil
	}
	if a.controller.Busy() {
		return a, a.setNotice("a response is still streaming")
	}

	if a.store.ActiveID() == "" {
		a.store.NewSession()
	}
	if _, err := a.store.AppendMessage(chat.RoleUser, text, "", 0, 0); err != nil {
		return a, a.setNotice(err.Error())
	}
	a.input.Reset()
	a.messages = a.store.Messages()
	a.sessions = a.store.ListSessions()
	a.refreshTranscript()
	a.viewport.GotoBottom()

	events := a.events
	cb := exchange.Callbacks{
		OnChunk: func(text string) { events <- ChunkMsg{Text: text} },
		OnDone: func(msg chat.Message, cost float64, persistErr error) {
			events <- DoneMsg{Msg: msg, Cost: cost, PersistErr: persistErr}
		},
		OnError: func(err error) { events <- ErrMsg{Err: err} },
	}
	apiKey := secret.APIKey(a.secrets)
	if err := a.controller.Send(context.Background(), a.cfg.Chat, apiKey, cb); err != nil {
		return a, a.setNotice(err.Error())
	}
	return a, a.spinner.Tick
}

func (a App) newSession() (tea.Model, tea.Cmd) {
	if a.controller.Busy() {
		return a, a.setNotice("a response is still streaming")
	}
	a.store.NewSession()
	a.messages = nil
	a.draft = ""
	a.refreshTranscript()
	a.focus = focusInput
	a.input.Focus()
	return a, nil
}

func (a App) openSelected() (tea.Model, tea.Cmd) {
	if a.controller.Busy() {
		return a, a.setNotice("a response is still streaming")
	}
	if a.cursor >= len(a.sessions) {
		return a, nil
	}
	msgs, err := a.store.LoadSession(a.sessions[a.cursor].ID)
	if err != nil {
		return a, a.setNotice(err.Error())
	}
	a.messages = msgs
	a.draft = ""
	a.refreshTranscript()
	a.viewport.GotoBottom()
	a.focus = focusInput
	a.input.Focus()
	return a, nil
}

func (a App) deleteSelected() (tea.Model, tea.Cmd) {
	if a.controller.Busy() {
		return a, a.setNotice("a response is still streaming")
	}
	if a.cursor >= len(a.sessions) {
		return a, nil
	}
	id := a.sessions[a.cursor].ID
	wasActive := id == a.store.ActiveID()
	if err := a.store.DeleteSession(id); err != nil {
		return a, a.setNotice(err.Error())
	}
	a.sessions = a.store.ListSessions()
	if a.cursor >= len(a.sessions) && a.cursor > 0 {
		a.cursor--
	}
	if wasActive {
		a.store.NewSession()
		a.messages = nil
		a.refreshTranscript()
	}
	return a, nil
}

func (a *App) setNotice(text string) tea.Cmd {
	a.notice = text
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return clearNoticeMsg{}
	})
}

func (a App) storedKey() string {
	key, err := a.secrets.Get()
	if err != nil {
		return ""
	}
	return key
}

// ─── Layout and rendering ───────────────────────────────────────

func (a *App) layout() {
	mainW := a.width - sidebarWidth - 1
	if mainW < 20 {
		mainW = 20
	}
	// viewport + input box (bordered) + notice/status rows
	vpH := a.height - inputHeight - 4
	if vpH < 3 {
		vpH = 3
	}

	if !a.ready {
		a.viewport = viewport.New(mainW, vpH)
	} else {
		a.viewport.Width = mainW
		a.viewport.Height = vpH
	}
	a.input.SetWidth(mainW - 2)

	wrap := mainW - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		r = nil
	}
	a.renderer = r
}

// refreshTranscript rebuilds the viewport content from the persisted
// transcript plus the in-flight draft.
func (a *App) refreshTranscript() {
	t := theme.Active
	w := a.viewport.Width

	userLabel := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	assistantLabel := lipgloss.NewStyle().Foreground(t.Green).Bold(true)
	body := lipgloss.NewStyle().Foreground(t.TextPrimary).Width(w - 2)
	meta := lipgloss.NewStyle().Foreground(t.TextDim)

	var b strings.Builder
	for _, m := range a.messages {
		if m.Role == chat.RoleUser {
			b.WriteString(userLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(body.Render(m.Content))
		} else {
			b.WriteString(assistantLabel.Render("Claude"))
			b.WriteString("\n")
			b.WriteString(a.renderMarkdown(m.Content))
			if m.InputTokens > 0 || m.OutputTokens > 0 {
				b.WriteString(meta.Render(fmt.Sprintf("  %s in / %s out",
					cli.FormatTokens(m.InputTokens), cli.FormatTokens(m.OutputTokens))))
			}
		}
		b.WriteString("\n\n")
	}

	if a.draft != "" {
		b.WriteString(assistantLabel.Render("Claude"))
		b.WriteString("\n")
		// Draft is rendered as plain text; markdown waits for the final form.
		b.WriteString(body.Render(a.draft))
		b.WriteString("\n")
	}

	a.viewport.SetContent(b.String())
}

func (a App) renderMarkdown(content string) string {
	if a.renderer == nil {
		return content
	}
	out, err := a.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  cchat needs at least %d columns.\n",
			a.width, minTerminalWidth)
	}

	if a.settingsForm != nil {
		return a.settingsForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewMain() string {
	t := theme.Active

	sidebar := a.viewSidebar()

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Width(a.viewport.Width - 2)
	if a.focus == focusInput {
		inputStyle = inputStyle.BorderForeground(t.Accent)
	}

	noticeStyle := lipgloss.NewStyle().Foreground(t.Red)
	noticeLine := ""
	if a.notice != "" {
		noticeLine = noticeStyle.Render(" " + a.notice)
	} else if a.controller.Busy() {
		noticeLine = lipgloss.NewStyle().Foreground(t.TextMuted).
			Render(" " + a.spinner.View() + "thinking...")
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		a.viewport.View(),
		noticeLine,
		inputStyle.Render(a.input.View()),
	)

	content := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", main)

	snap := a.ledger.Snapshot()
	usageStr := fmt.Sprintf("%s tok · %s",
		cli.FormatTokens(snap.InputTokens+snap.OutputTokens),
		cli.FormatCost(snap.TotalCost))
	statusBar := components.RenderStatusBar(a.width, a.cfg.Chat.Model, usageStr, a.controller.Busy())

	return lipgloss.JoinVertical(lipgloss.Left, content, statusBar)
}

func (a App) viewSidebar() string {
	t := theme.Active
	h := a.viewport.Height + inputHeight + 3

	titleStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Width(sidebarWidth)
	selStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceHover).Width(sidebarWidth)
	activeStyle := lipgloss.NewStyle().Foreground(t.Green)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	var b strings.Builder
	b.WriteString(titleStyle.Render(" Sessions"))
	if a.focus == focusSidebar {
		b.WriteString(dimStyle.Render("  [enter]open [n]ew [d]el"))
	}
	b.WriteString("\n")

	if len(a.sessions) == 0 {
		b.WriteString(dimStyle.Render(" No saved sessions yet"))
		b.WriteString("\n")
	}

	visible := h - 2
	start := 0
	if a.cursor >= visible {
		start = a.cursor - visible + 1
	}
	for i := start; i < len(a.sessions) && i-start < visible; i++ {
		s := a.sessions[i]
		marker := "  "
		if s.ID == a.store.ActiveID() {
			marker = activeStyle.Render("* ")
		}
		title := cli.Truncate(s.Title, sidebarWidth-4)
		if i == a.cursor && a.focus == focusSidebar {
			b.WriteString(selStyle.Render(marker + title))
		} else {
			b.WriteString(rowStyle.Render(marker + title))
		}
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(h).
		Render(b.String())
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Accent).
		Padding(1, 3)
	titleStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Blue).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	bindings := []struct{ key, desc string }{
		{"enter", "Send message / open session"},
		{"tab", "Switch focus input <-> sessions"},
		{"ctrl+n", "New session"},
		{"ctrl+s", "Settings"},
		{"j k", "Navigate sessions"},
		{"d", "Delete selected session"},
		{"pgup pgdn", "Scroll transcript"},
		{"ctrl+c", "Quit"},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, bind := range bindings {
		fmt.Fprintf(&b, "  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
			descStyle.Render(bind.desc))
	}
	b.WriteString("\n")
	b.WriteString(descStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
		cardStyle.Render(b.String()))
}
