// kolibri-browse - TUI для просмотра каналов и дерева контента Kolibri.
//
// Enter на строке с номером открывает узел, Backspace возвращает назад.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"

	"github.com/ilkoid/kolibri-sdk/pkg/config"
	"github.com/ilkoid/kolibri-sdk/pkg/kolibri"
	"github.com/ilkoid/kolibri-sdk/pkg/utils"
)

// --- Стили ---
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")). // Зеленый
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")) // Розовый

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)

// entry - строка списка: канал или узел.
type entry struct {
	ID    string // Узел, который откроется по Enter
	Title string
	Kind  string
	Note  string
}

// --- Сообщения (Messages) ---
type errMsg error
type contentMsg struct {
	title   string
	entries []entry
}

// --- Модель ---
type model struct {
	client   *kolibri.Client
	spinner  spinner.Model
	viewport viewport.Model
	input    textinput.Model

	title   string
	entries []entry
	stack   []string // Открытые узлы, "" - список каналов

	loading bool
	err     error
	ready   bool
	width   int
}

func initialModel(client *kolibri.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	in := textinput.New()
	in.Placeholder = "number"
	in.CharLimit = 6
	in.Width = 8
	in.Focus()

	return model{
		client:  client,
		spinner: s,
		input:   in,
		stack:   []string{""},
		loading: true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchChannels(m.client),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			return m.open()
		case "backspace":
			if m.input.Value() == "" && len(m.stack) > 1 {
				m.stack = m.stack[:len(m.stack)-1]
				m.loading = true
				return m, tea.Batch(m.spinner.Tick, m.load(m.stack[len(m.stack)-1]))
			}
		}

	case errMsg:
		m.err = msg
		m.loading = false
		return m, nil

	case contentMsg:
		m.loading = false
		m.err = nil
		m.title = msg.title
		m.entries = msg.entries
		m.viewport.SetContent(formatEntries(msg.entries, m.width))
		m.viewport.GotoTop()
		return m, nil

	case tea.WindowSizeMsg:
		headerHeight := 2
		verticalMarginHeight := 3
		m.width = msg.Width

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - verticalMarginHeight
		}
		m.viewport.SetContent(formatEntries(m.entries, m.width))
	}

	if m.loading {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// open загружает узел по номеру из поля ввода.
func (m model) open() (tea.Model, tea.Cmd) {
	n, err := strconv.Atoi(strings.TrimSpace(m.input.Value()))
	m.input.SetValue("")
	if err != nil || n < 1 || n > len(m.entries) {
		return m, nil
	}
	target := m.entries[n-1]
	if target.ID == "" {
		return m, nil
	}

	m.stack = append(m.stack, target.ID)
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, m.load(target.ID))
}

func (m model) load(node string) tea.Cmd {
	if node == "" {
		return fetchChannels(m.client)
	}
	return fetchChildren(m.client, node)
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n❌ Error: %v\n\nPress 'q' to quit, Backspace to go back.", m.err)
	}

	if m.loading {
		return fmt.Sprintf("\n %s Talking to Kolibri...\n\n", m.spinner.View())
	}

	header := titleStyle.Render("📚 Kolibri Browser · " + m.title)
	footer := dimStyle.Render("number + Enter: open · Backspace: back · q: quit")
	return fmt.Sprintf("%s\n%s\n%s %s", header, m.viewport.View(), m.input.View(), footer)
}

// --- Бизнес-логика (Commands) ---

func fetchChannels(client *kolibri.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		channels, err := client.ListChannels(ctx, true)
		if err != nil {
			return errMsg(err)
		}

		entries := make([]entry, 0, len(channels))
		for _, ch := range channels {
			entries = append(entries, entry{
				ID:    ch.RootID,
				Title: ch.Name,
				Kind:  "channel",
				Note:  ch.Description,
			})
		}
		return contentMsg{title: "Channels", entries: entries}
	}
}

func fetchChildren(client *kolibri.Client, parent string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		nodes, err := client.ListChildren(ctx, parent, "")
		if err != nil {
			return errMsg(err)
		}

		entries := make([]entry, 0, len(nodes))
		for _, n := range nodes {
			e := entry{Title: n.Title, Kind: n.Kind, Note: n.Description}
			// Открывать имеет смысл только папки
			if n.Topic() {
				e.ID = n.ID
			}
			entries = append(entries, e)
		}
		return contentMsg{title: parent, entries: entries}
	}
}

// formatEntries форматирует список для вьюпорта. Описания переносятся по ширине.
func formatEntries(entries []entry, width int) string {
	if len(entries) == 0 {
		return "Nothing here."
	}
	if width <= 8 {
		width = 80
	}

	var b strings.Builder
	for i, e := range entries {
		marker := " "
		if e.ID != "" {
			marker = itemStyle.Render("•")
		}
		fmt.Fprintf(&b, "%3d %s %-8s %s\n", i+1, marker, e.Kind, e.Title)
		if e.Note != "" {
			note := wrap.String(e.Note, width-8)
			for _, line := range strings.Split(note, "\n") {
				b.WriteString("        " + dimStyle.Render(line) + "\n")
			}
		}
	}
	return b.String()
}

// --- Main ---

func main() {
	configFlag := flag.String("config", "", "Path to config.yaml")
	flag.Parse()

	cfg, _, err := config.LoadOrDefault(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config Error: %v\n", err)
		os.Exit(1)
	}

	if err := utils.InitLogger(cfg.App.LogsDir, "kolibri-browse"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}
	defer utils.Close()

	// Inspector печатает в stdout, в TUI это ломает экран
	client, err := kolibri.NewFromConfig(cfg.Kolibri, kolibri.WithOutput(io.Discard))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client Init Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	p := tea.NewProgram(
		initialModel(client),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
