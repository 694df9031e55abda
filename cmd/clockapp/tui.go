package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BYTE-6D65/clockapp/pkg/app"
	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/event"
	"github.com/BYTE-6D65/clockapp/pkg/status"
	"github.com/BYTE-6D65/clockapp/pkg/surface"
)

// Screens
type screen int

const (
	screenClock screen = iota
	screenTimer
	screenStopwatch
)

var screens = []screen{screenClock, screenTimer, screenStopwatch}

func (s screen) title() string {
	switch s {
	case screenTimer:
		return "Timer"
	case screenStopwatch:
		return "Stopwatch"
	}
	return "Clock"
}

// kind returns the engine behind s; the clock screen has none.
func (s screen) kind() (engine.Kind, bool) {
	switch s {
	case screenTimer:
		return engine.KindCountdown, true
	case screenStopwatch:
		return engine.KindStopwatch, true
	}
	return "", false
}

// Message types
type messageType int

const (
	msgInfo messageType = iota
	msgError
)

// userMessage represents a dynamic message to the user
type userMessage struct {
	msgType messageType
	text    string
}

// Model holds the state of the TUI
type model struct {
	ctx    context.Context
	app    *app.App
	screen screen
	width  int
	height int

	now       time.Time
	snapshots map[engine.Kind]engine.Snapshot
	preset    int64
	step      int64

	listeners map[engine.Kind]*status.Listener
	surfaces  map[engine.Kind]*surface.ChannelSurface
	tray      map[engine.Kind]surface.Notice

	userMessage *userMessage
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingLeft(2)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("#626262"))

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Underline(true)

	displayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 4).
			MarginLeft(2).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB800"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingTop(1).
			PaddingLeft(2)

	trayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00A9E0")).
			Foreground(lipgloss.Color("#00A9E0")).
			Padding(0, 2).
			MarginTop(1).
			MarginLeft(2)

	infoMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#00A9E0")).
				PaddingLeft(2)

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF5555")).
				PaddingLeft(2)
)

// Messages
type wallClockMsg time.Time

type statusMsg struct {
	update status.Update
}

type listenerClosedMsg struct {
	kind engine.Kind
	err  error
}

type surfaceMsg struct {
	kind   engine.Kind
	update surface.Update
}

func initialModel(ctx context.Context, a *app.App, listeners map[engine.Kind]*status.Listener, surfaces map[engine.Kind]*surface.ChannelSurface) model {
	cfg := a.Config()
	return model{
		ctx:       ctx,
		app:       a,
		screen:    screenClock,
		now:       time.Now(),
		snapshots: make(map[engine.Kind]engine.Snapshot),
		preset:    int64(cfg.DefaultCountdown / time.Second),
		step:      int64(cfg.CountdownStep / time.Second),
		listeners: listeners,
		surfaces:  surfaces,
		tray:      make(map[engine.Kind]surface.Notice),
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{wallClock()}
	for kind, l := range m.listeners {
		cmds = append(cmds, waitForUpdate(m.ctx, kind, l))
		m.send(kind, event.ActionGetStatus)
	}
	for kind, s := range m.surfaces {
		cmds = append(cmds, waitForSurface(kind, s))
	}
	return tea.Batch(cmds...)
}

// wallClock fires on the next whole second.
func wallClock() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return wallClockMsg(t)
	})
}

func waitForUpdate(ctx context.Context, kind engine.Kind, l *status.Listener) tea.Cmd {
	return func() tea.Msg {
		u, err := l.Recv(ctx)
		if err != nil {
			return listenerClosedMsg{kind: kind, err: err}
		}
		return statusMsg{update: u}
	}
}

func waitForSurface(kind engine.Kind, s *surface.ChannelSurface) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-s.Updates()
		if !ok {
			return nil
		}
		return surfaceMsg{kind: kind, update: u}
	}
}

// send publishes actions for kind from inside Update. Commands never leave
// the event loop, so each engine sees them in key-press order.
func (m *model) send(kind engine.Kind, actions ...event.Action) {
	for _, action := range actions {
		if err := m.app.Send(m.ctx, kind, action, m.preset); err != nil {
			m.userMessage = &userMessage{msgType: msgError, text: err.Error()}
			return
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.BlurMsg:
		// Terminal lost focus: the visible engine screen is now hidden.
		if kind, ok := m.screen.kind(); ok {
			m.send(kind, event.ActionMoveToBackground)
		}
		return m, nil

	case tea.FocusMsg:
		if kind, ok := m.screen.kind(); ok {
			m.send(kind, event.ActionMoveToForeground, event.ActionGetStatus)
		}
		return m, nil

	case wallClockMsg:
		m.now = time.Time(msg)
		return m, wallClock()

	case statusMsg:
		snap := msg.update.Snapshot
		m.snapshots[snap.Kind] = snap
		return m, waitForUpdate(m.ctx, snap.Kind, m.listeners[snap.Kind])

	case listenerClosedMsg:
		delete(m.listeners, msg.kind)
		return m, nil

	case surfaceMsg:
		if msg.update.Visible {
			m.tray[msg.kind] = msg.update.Notice
		} else {
			delete(m.tray, msg.kind)
		}
		return m, waitForSurface(msg.kind, m.surfaces[msg.kind])
	}
	return m, nil
}

func (m model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab", "right", "l":
		return m.switchTo(screens[(int(m.screen)+1)%len(screens)])

	case "shift+tab", "left", "h":
		return m.switchTo(screens[(int(m.screen)+len(screens)-1)%len(screens)])

	case "1":
		return m.switchTo(screenClock)
	case "2":
		return m.switchTo(screenTimer)
	case "3":
		return m.switchTo(screenStopwatch)
	}

	kind, ok := m.screen.kind()
	if !ok {
		return m, nil
	}

	switch msg.String() {
	case "s", " ":
		m.userMessage = nil
		m.send(kind, event.ActionStart)

	case "p":
		m.send(kind, event.ActionPause)

	case "r":
		m.userMessage = nil
		m.send(kind, event.ActionReset)

	case "+", "=":
		if kind == engine.KindCountdown {
			m.preset += m.step
			m.userMessage = &userMessage{msgType: msgInfo, text: "Preset " + status.Format(m.preset)}
		}

	case "-", "_":
		if kind == engine.KindCountdown {
			m.preset = max(m.preset-m.step, 0)
			m.userMessage = &userMessage{msgType: msgInfo, text: "Preset " + status.Format(m.preset)}
		}
	}
	return m, nil
}

// switchTo hides the engine behind the current screen and shows the one
// behind next.
func (m model) switchTo(next screen) (tea.Model, tea.Cmd) {
	if next == m.screen {
		return m, nil
	}

	if kind, ok := m.screen.kind(); ok {
		m.send(kind, event.ActionMoveToBackground)
	}
	m.screen = next
	m.userMessage = nil
	if kind, ok := m.screen.kind(); ok {
		m.send(kind, event.ActionMoveToForeground, event.ActionGetStatus)
	}
	return m, nil
}

func (m model) View() string {
	s := titleStyle.Render("⏱  clockapp") + "\n\n"
	s += m.renderTabs() + "\n\n"

	switch m.screen {
	case screenClock:
		s += m.renderClock()
	case screenTimer:
		s += m.renderEngine(engine.KindCountdown)
	case screenStopwatch:
		s += m.renderEngine(engine.KindStopwatch)
	}

	if tray := m.renderTray(); tray != "" {
		s += "\n" + tray
	}
	if m.userMessage != nil {
		s += "\n" + m.renderUserMessage()
	}

	s += "\n" + helpStyle.Render(m.help())
	return s
}

func (m model) renderTabs() string {
	tabs := make([]string, 0, len(screens))
	for i, sc := range screens {
		label := fmt.Sprintf("%d %s", i+1, sc.title())
		if sc == m.screen {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) renderClock() string {
	s := displayStyle.Render(m.now.Format("15:04:05")) + "\n"
	s += labelStyle.Render(m.now.Format("Monday, 2 January 2006")) + "\n"
	return s
}

func (m model) renderEngine(kind engine.Kind) string {
	snap := m.snapshots[kind]

	state := pausedStyle.Render(status.Label(false))
	if snap.Running {
		state = runningStyle.Render(status.Label(true))
	}

	s := displayStyle.Render(status.Format(snap.Seconds)) + "\n"
	s += labelStyle.Render(state) + "\n"

	if kind == engine.KindCountdown {
		preset := "Preset: " + status.Format(m.preset)
		if snap.Initial > 0 {
			preset += "   Started from: " + status.Format(snap.Initial)
		}
		s += labelStyle.Render(preset) + "\n"
	}
	return s
}

// renderTray shows the persistent surfaces of hidden engines.
func (m model) renderTray() string {
	if len(m.tray) == 0 {
		return ""
	}

	var lines []string
	for _, kind := range engine.Kinds {
		n, ok := m.tray[kind]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("🔔 %s  %s", n.Title, n.Line))
	}
	return trayStyle.Render(strings.Join(lines, "\n"))
}

func (m model) renderUserMessage() string {
	if m.userMessage == nil {
		return ""
	}

	switch m.userMessage.msgType {
	case msgError:
		return errorMessageStyle.Render("❌ " + m.userMessage.text)
	default:
		return infoMessageStyle.Render("ℹ️  " + m.userMessage.text)
	}
}

func (m model) help() string {
	switch m.screen {
	case screenTimer:
		return "s start • p pause • r reset • +/- preset • tab switch • q quit"
	case screenStopwatch:
		return "s start • p pause • r reset • tab switch • q quit"
	}
	return "tab or 1/2/3 to switch • q quit"
}

func startTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := tuiLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	surfaces := make(map[engine.Kind]*surface.ChannelSurface)
	opts := []app.Option{app.WithLogger(logger)}
	for _, kind := range engine.Kinds {
		s := surface.NewChannelSurface(string(kind), 4)
		surfaces[kind] = s
		opts = append(opts, app.WithSurface(kind, s))
	}

	a, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	listeners := make(map[engine.Kind]*status.Listener)
	for _, kind := range engine.Kinds {
		l, err := a.Listen(ctx, kind)
		if err != nil {
			return err
		}
		listeners[kind] = l
	}

	p := tea.NewProgram(
		initialModel(ctx, a, listeners, surfaces),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	_, runErr := p.Run()

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
	return runErr
}
