package ui

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"careLinkWs/internal/modules/bell/infrastructure"
	notifications "careLinkWs/internal/modules/notifications/domain"
	realtime "careLinkWs/internal/modules/realtime/domain"
)

const (
	actionMarkAllRead        = "markAllRead"
	actionRemoveNotification = "removeNotification"
	dropdownWidth            = 56
)

// Commander sends websocket commands to the service.
type Commander interface {
	Send(action string, payload any) error
}

type updateMsg struct {
	update infrastructure.Update
}

// sourceClosedMsg means the event source stopped; the program should end.
type sourceClosedMsg struct{}

type sendResultMsg struct {
	action string
	err    error
}

// Model is the bell: a badge with the unread count and a dropdown with the list.
type Model struct {
	updates   <-chan infrastructure.Update
	commander Commander
	keys      *KeyMap
	help      help.Model

	userID  string
	items   []notifications.Notification
	unread  int
	status  infrastructure.Status
	open    bool
	cursor  int
	lastErr string
	width   int
}

// New creates the bell model fed by updates.
func New(updates <-chan infrastructure.Update, commander Commander) Model {
	return Model{
		updates:   updates,
		commander: commander,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		status:    infrastructure.StatusConnecting,
		width:     dropdownWidth + 4,
	}
}

// Init starts listening to the event source.
func (m Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m Model) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return sourceClosedMsg{}
		}
		return updateMsg{update: u}
	}
}

// Update handles messages for the bell.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.apply(msg.update)
		return m, m.waitForUpdate()

	case sourceClosedMsg:
		return m, tea.Quit

	case sendResultMsg:
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) apply(u infrastructure.Update) {
	if u.Frame == nil {
		m.status = u.Status
		if u.Status == infrastructure.StatusConnected {
			m.lastErr = ""
		}
		return
	}
	frame := u.Frame
	switch {
	case frame.Topic == realtime.TopicNotifications && frame.Event == realtime.EventSnapshot:
		var snapshot realtime.NotificationsSnapshot
		if err := json.Unmarshal(frame.Data, &snapshot); err != nil {
			slog.Warn("bell snapshot decode failed", slog.Any("error", err))
			return
		}
		m.items = snapshot.Items
		m.unread = snapshot.Unread
		m.clampCursor()
	case frame.Topic == realtime.TopicSystem && frame.Event == realtime.EventConnected:
		var connected struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(frame.Data, &connected); err == nil {
			m.userID = connected.UserID
		}
	case frame.Topic == realtime.TopicSystem && frame.Event == realtime.EventError:
		m.lastErr = frame.Metadata["reason"]
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		m.open = !m.open
		return m, nil
	case key.Matches(msg, m.keys.Close):
		m.open = false
		return m, nil
	}
	if !m.open {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.markAllRead()
	case key.Matches(msg, m.keys.Dismiss):
		return m, m.dismissSelected()
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	if msg.Y == 0 && msg.X < lipgloss.Width(m.badgeView()) {
		m.open = !m.open
		return m, nil
	}
	if !m.open {
		return m, nil
	}
	dropdown := m.dropdownView()
	inside := msg.Y >= 1 && msg.Y <= lipgloss.Height(dropdown) && msg.X < lipgloss.Width(dropdown)
	if !inside {
		m.open = false
	}
	return m, nil
}

// markAllRead updates the list right away; the next snapshot from the service confirms it.
func (m *Model) markAllRead() tea.Cmd {
	items := make([]notifications.Notification, len(m.items))
	for i, n := range m.items {
		n.Read = true
		items[i] = n
	}
	m.items = items
	m.unread = 0
	return m.send(actionMarkAllRead, nil)
}

func (m *Model) dismissSelected() tea.Cmd {
	if len(m.items) == 0 {
		return nil
	}
	selected := m.items[m.cursor]
	items := make([]notifications.Notification, 0, len(m.items)-1)
	items = append(items, m.items[:m.cursor]...)
	m.items = append(items, m.items[m.cursor+1:]...)
	if !selected.Read && m.unread > 0 {
		m.unread--
	}
	m.clampCursor()
	return m.send(actionRemoveNotification, realtime.NotificationIDCommand{ID: selected.ID})
}

func (m *Model) send(action string, payload any) tea.Cmd {
	commander := m.commander
	return func() tea.Msg {
		return sendResultMsg{action: action, err: commander.Send(action, payload)}
	}
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the badge, the dropdown when open and the help line.
func (m Model) View() string {
	parts := []string{m.badgeView()}
	if m.open {
		parts = append(parts, m.dropdownView())
	}
	if m.lastErr != "" {
		parts = append(parts, errorStyle.Render(m.lastErr))
	}
	parts = append(parts, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) badgeView() string {
	badge := badgeStyle.Render("Notifications")
	if m.unread > 0 {
		badge = lipgloss.JoinHorizontal(lipgloss.Top, badge, unreadCountStyle.Render(fmt.Sprintf("%d", m.unread)))
	}
	switch m.status {
	case infrastructure.StatusReconnecting:
		badge += " " + reconnectingStyle.Render("reconnecting…")
	case infrastructure.StatusConnecting:
		badge += " " + reconnectingStyle.Render("connecting…")
	}
	return badge
}

func (m Model) dropdownView() string {
	width := dropdownWidth
	if m.width > 0 && m.width-4 < width {
		width = max(m.width-4, 16)
	}
	if len(m.items) == 0 {
		return dropdownStyle.Width(width).Render(timestampStyle.Render("No notifications"))
	}

	lines := make([]string, 0, len(m.items))
	for i, n := range m.items {
		marker := " "
		if !n.Read {
			marker = "●"
		}
		text := truncate(n.Message, width-6)
		line := typeStyle(n.Type).Render(marker) + " " + text + "\n  " + timestampStyle.Render(n.Timestamp)
		switch {
		case i == m.cursor:
			line = selectedItemStyle.Render(line)
		case n.Read:
			line = itemStyle.Render(readItemStyle.Render(line))
		default:
			line = itemStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return dropdownStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 1 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

// Unread returns the badge count.
func (m Model) Unread() int { return m.unread }

// Items returns the notifications currently listed.
func (m Model) Items() []notifications.Notification { return m.items }

// Open reports whether the dropdown is shown.
func (m Model) Open() bool { return m.open }

// Status returns the connection status shown next to the badge.
func (m Model) Status() infrastructure.Status { return m.status }
