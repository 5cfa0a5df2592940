package cli

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"batch-translator/internal/checkpoint"
	"batch-translator/internal/config"
)

type inspectMode int

const (
	inspectModeBrowse inspectMode = iota
	inspectModeDeleteConfirm
)

type inspectModel struct {
	storePath string
	record    *checkpoint.Record
	visible   []int64
	cursor    int
	width     int
	height    int
	mode      inspectMode
	filter    textinput.Model
	filtering bool

	confirmDeleteID int64
	statusMessage   string
	fatalErr        error
}

type inspectLoadedMsg struct {
	record *checkpoint.Record
	err    error
}

type inspectDeletedMsg struct {
	id  int64
	err error
}

var (
	inspectTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	inspectMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	inspectErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	inspectOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	inspectPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inspectSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	checkpointPath := fs.String("checkpoint", "", "checkpoint file path (default from config)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("inspect requires an interactive terminal (TTY)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	m := newInspectModel(firstNonEmpty(*checkpointPath, cfg.Defaults.CheckpointPath))
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("inspect requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(inspectModel); ok {
		return fm.fatalErr
	}
	return nil
}

func newInspectModel(storePath string) inspectModel {
	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter by id or text"
	filter.CharLimit = 256
	filter.Width = 40
	return inspectModel{
		storePath: storePath,
		record:    checkpoint.NewRecord(),
		mode:      inspectModeBrowse,
		filter:    filter,
	}
}

func (m inspectModel) Init() tea.Cmd {
	return loadCheckpointCmd(m.storePath)
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filter.Width = clampInt(m.width-8, 20, 80)
		return m, nil
	case inspectLoadedMsg:
		if msg.err != nil {
			m.fatalErr = msg.err
			return m, tea.Quit
		}
		m.record = msg.record
		m.rebuildVisible()
		return m, nil
	case inspectDeletedMsg:
		m.mode = inspectModeBrowse
		m.confirmDeleteID = 0
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = fmt.Sprintf("entry %d removed; the next run re-translates it", msg.id)
		return m, loadCheckpointCmd(m.storePath)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case inspectModeDeleteConfirm:
		return m.updateDeleteConfirm(keyMsg)
	default:
		return m.updateBrowse(keyMsg)
	}
}

func (m inspectModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.filtering = false
			m.filter.Blur()
			m.filter.SetValue("")
			m.rebuildVisible()
			return m, nil
		case "enter":
			m.filtering = false
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.rebuildVisible()
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		return m, nil
	case "/":
		m.filtering = true
		m.statusMessage = ""
		return m, m.filter.Focus()
	case "esc":
		if strings.TrimSpace(m.filter.Value()) != "" {
			m.filter.SetValue("")
			m.rebuildVisible()
		}
		return m, nil
	case "r":
		m.statusMessage = ""
		return m, loadCheckpointCmd(m.storePath)
	case "d":
		if len(m.visible) == 0 || m.cursor >= len(m.visible) {
			m.statusMessage = "select an entry to delete"
			return m, nil
		}
		m.mode = inspectModeDeleteConfirm
		m.confirmDeleteID = m.visible[m.cursor]
		return m, nil
	}
	return m, nil
}

func (m inspectModel) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "n":
		m.mode = inspectModeBrowse
		m.confirmDeleteID = 0
		m.statusMessage = "delete cancelled"
		return m, nil
	case "y", "enter":
		return m, deleteEntryCmd(m.storePath, m.confirmDeleteID)
	}
	return m, nil
}

func (m *inspectModel) rebuildVisible() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	ids := m.record.IDs()
	if query == "" {
		m.visible = ids
	} else {
		visible := make([]int64, 0, len(ids))
		for _, id := range ids {
			entry, ok := m.record.Get(id)
			if !ok {
				continue
			}
			if strings.Contains(strconv.FormatInt(id, 10), query) ||
				strings.Contains(strings.ToLower(entry.Input), query) ||
				strings.Contains(strings.ToLower(entry.Response), query) {
				visible = append(visible, id)
			}
		}
		m.visible = visible
	}
	if m.cursor > len(m.visible)-1 {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m inspectModel) View() string {
	if m.fatalErr != nil {
		return inspectErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}

	switch m.mode {
	case inspectModeDeleteConfirm:
		return m.viewDeleteConfirm()
	default:
		return m.viewBrowse()
	}
}

func (m inspectModel) viewBrowse() string {
	header := inspectTitleStyle.Render("batch-translator inspect") + "  " +
		inspectMutedStyle.Render(m.storePath) + "\n" +
		inspectMutedStyle.Render("up/down: move | /: filter | d: delete entry | r: reload | q: quit")

	filterLine := ""
	if m.filtering || strings.TrimSpace(m.filter.Value()) != "" {
		filterLine = m.filter.View()
	}

	var body string
	if m.width < 90 {
		list := m.renderListPanel(m.width)
		details := m.renderDetailsPanel(m.width)
		body = lipgloss.JoinVertical(lipgloss.Left, list, details)
	} else {
		leftW := clampInt(m.width/3, 26, 48)
		rightW := m.width - leftW - 1
		list := m.renderListPanel(leftW)
		details := m.renderDetailsPanel(rightW)
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, details)
	}

	status := m.renderStatusLine(m.width)
	if filterLine != "" {
		return lipgloss.JoinVertical(lipgloss.Left, header, filterLine, body, status)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (m inspectModel) renderListPanel(width int) string {
	total := len(m.visible)
	maxRows := clampInt(m.height-10, 4, 24)
	start, end := listWindow(total, m.cursor, maxRows)

	lines := make([]string, 0, maxRows+2)
	if total == 0 {
		if m.record.Len() == 0 {
			lines = append(lines, inspectMutedStyle.Render("Checkpoint is empty."))
		} else {
			lines = append(lines, inspectMutedStyle.Render("No entries match the filter."))
		}
	}
	if start > 0 {
		lines = append(lines, inspectMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		id := m.visible[i]
		entry, _ := m.record.Get(id)
		line := fmt.Sprintf("%6d  %s", id, firstLine(entry.Input))
		line = truncateRunes(line, maxInt(width-6, 10))
		if i == m.cursor {
			line = inspectSelStyle.Width(maxInt(width-4, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < total {
		lines = append(lines, inspectMutedStyle.Render("..."))
	}

	return inspectPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m inspectModel) renderDetailsPanel(width int) string {
	lines := []string{}
	if len(m.visible) == 0 || m.cursor >= len(m.visible) {
		lines = append(lines, "No entry selected")
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("%d entries in checkpoint", m.record.Len()))
	} else {
		id := m.visible[m.cursor]
		entry, _ := m.record.Get(id)
		lines = append(lines, "Entry Details")
		lines = append(lines, "")
		lines = append(lines, kv("id", strconv.FormatInt(id, 10)))
		lines = append(lines, kv("input_bytes", formatBytesIEC(int64(len(entry.Input)))))
		lines = append(lines, kv("response_bytes", formatBytesIEC(int64(len(entry.Response)))))
		lines = append(lines, kv("raw_bytes", formatBytesIEC(int64(len(entry.Raw)))))
		lines = append(lines, "")
		lines = append(lines, "input:")
		lines = append(lines, previewLines(entry.Input, 5)...)
		lines = append(lines, "")
		lines = append(lines, "translated:")
		lines = append(lines, previewLines(entry.Response, 5)...)
		lines = append(lines, "")
		lines = append(lines, "raw envelope:")
		lines = append(lines, previewLines(string(entry.Raw), 3)...)
	}

	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(width-6, 12))
	}
	return inspectPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m inspectModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = fmt.Sprintf("%d of %d entries shown", len(m.visible), m.record.Len())
	}
	style := inspectMutedStyle
	if strings.HasPrefix(strings.ToLower(msg), "error:") {
		style = inspectErrorStyle
	} else if strings.HasPrefix(strings.ToLower(msg), "entry ") {
		style = inspectOKStyle
	}
	return style.Width(width).Render(truncateRunes(msg, maxInt(width-2, 10)))
}

func (m inspectModel) viewDeleteConfirm() string {
	entry, _ := m.record.Get(m.confirmDeleteID)
	text := fmt.Sprintf(
		"Delete entry %d?\n\n%s\n\nThe row stays in the dataset and is\nre-translated by the next run.\n\nPress y or Enter to confirm, n or Esc to cancel.",
		m.confirmDeleteID,
		truncateRunes(firstLine(entry.Input), 60),
	)
	boxW := clampInt(m.width-8, 36, 80)
	boxH := clampInt(m.height-6, 9, 14)
	panel := inspectPanelStyle.Width(boxW).Height(boxH).Render(text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func loadCheckpointCmd(storePath string) tea.Cmd {
	return func() tea.Msg {
		rec, err := checkpoint.NewStore(storePath).Load()
		if err != nil {
			return inspectLoadedMsg{err: err}
		}
		return inspectLoadedMsg{record: rec}
	}
}

// deleteEntryCmd rewrites the checkpoint without the entry. It takes the
// checkpoint lock so a concurrent run cannot interleave its own persists.
func deleteEntryCmd(storePath string, id int64) tea.Cmd {
	return func() tea.Msg {
		lock, err := checkpoint.AcquireLock(storePath, "inspect-"+uuid.NewString()[:8])
		if err != nil {
			return inspectDeletedMsg{id: id, err: err}
		}
		defer func() { _ = lock.Release() }()

		store := checkpoint.NewStore(storePath)
		rec, err := store.Load()
		if err != nil {
			return inspectDeletedMsg{id: id, err: err}
		}
		if !rec.Has(id) {
			return inspectDeletedMsg{id: id, err: fmt.Errorf("entry %d is not in the checkpoint", id)}
		}
		rec.Delete(id)
		if err := store.Persist(rec); err != nil {
			return inspectDeletedMsg{id: id, err: err}
		}
		return inspectDeletedMsg{id: id}
	}
}
