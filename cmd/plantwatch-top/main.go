// plantwatch-top is a terminal dashboard over a running plantwatch server.
// It polls the HTTP API and renders each machine's latest assessed reading
// with color-coded statuses.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"plantwatch/internal/models"
	"plantwatch/internal/risk"
)

const pollInterval = 2 * time.Second

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "plantwatch server base URL")
	apiKey := flag.String("api-key", "", "API key, when the server requires one")
	flag.Parse()

	p := tea.NewProgram(
		newModel(*baseURL, *apiKey),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ── API client ───────────────────────────────────────────────────────

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(baseURL, apiKey string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

var errNotFound = fmt.Errorf("not found")

type machineInfo struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Tripped bool   `json:"tripped"`
}

type machinesResponse struct {
	Machines []machineInfo `json:"machines"`
}

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type snapshotMsg struct {
	machines []machineInfo
	latest   map[string]*models.Reading
	time     time.Time
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ── Model ────────────────────────────────────────────────────────────

type model struct {
	api      *client
	machines []machineInfo
	latest   map[string]*models.Reading
	lastPoll time.Time
	err      error
	width    int
	height   int
	scroll   int
	paused   bool
}

func newModel(baseURL, apiKey string) model {
	return model{
		api:    newClient(baseURL, apiKey),
		latest: make(map[string]*models.Reading),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) pollCmd() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		var mr machinesResponse
		if err := api.get("/machines", &mr); err != nil {
			return errMsg{err}
		}
		sort.Slice(mr.Machines, func(i, j int) bool { return mr.Machines[i].Name < mr.Machines[j].Name })

		latest := make(map[string]*models.Reading, len(mr.Machines))
		for _, mi := range mr.Machines {
			var r models.Reading
			err := api.get("/latest/"+mi.Name, &r)
			if err == errNotFound {
				continue
			}
			if err != nil {
				return errMsg{err}
			}
			latest[mi.Name] = &r
		}
		return snapshotMsg{machines: mr.Machines, latest: latest, time: time.Now()}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		case "home":
			m.scroll = 0
		case " ", "p":
			m.paused = !m.paused
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if m.paused {
			return m, tickCmd()
		}
		return m, tea.Batch(m.pollCmd(), tickCmd())

	case snapshotMsg:
		m.machines = msg.machines
		m.latest = msg.latest
		m.lastPoll = msg.time
		m.err = nil

	case errMsg:
		m.err = msg.err
	}

	return m, nil
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorName     = lipgloss.Color("147")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorOk       = lipgloss.Color("78")
	colorWarn     = lipgloss.Color("220")
	colorCrit     = lipgloss.Color("196")
)

func statusColor(s risk.Status) lipgloss.Color {
	switch s {
	case risk.StatusCritical:
		return colorCrit
	case risk.StatusWarning:
		return colorWarn
	default:
		return colorOk
	}
}

// ── View ─────────────────────────────────────────────────────────────

func (m model) View() string {
	if m.width == 0 {
		return "  Connecting..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, m.renderTitle(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if len(m.machines) == 0 {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Waiting for machine data...")
		sections = append(sections, waiting)
	} else {
		for _, mi := range m.machines {
			sections = append(sections, m.renderMachine(mi, contentWidth))
		}
	}

	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	lines := strings.Split(content, "\n")
	visibleLines := m.height
	if visibleLines < 5 {
		visibleLines = 5
	}
	maxScroll := len(lines) - visibleLines
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.scroll > maxScroll {
		m.scroll = maxScroll
	}

	start := m.scroll
	end := start + visibleLines
	if end > len(lines) {
		end = len(lines)
	}

	return strings.Join(lines[start:end], "\n")
}

func (m model) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("PLANTWATCH")

	var right string
	if !m.lastPoll.IsZero() {
		right = lipgloss.NewStyle().
			Foreground(colorDim).
			Render(fmt.Sprintf("%d machines  polled %s", len(m.machines), m.lastPoll.Format("15:04:05")))
	}
	if m.paused {
		right += lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Render("  PAUSED")
	}

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m model) renderMachine(mi machineInfo, width int) string {
	name := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorName).
		Render(mi.Name)

	var state string
	switch {
	case mi.Tripped:
		state = lipgloss.NewStyle().Foreground(colorCrit).Bold(true).Render("TRIPPED")
	case mi.Running:
		state = lipgloss.NewStyle().Foreground(colorOk).Render("running")
	default:
		state = lipgloss.NewStyle().Foreground(colorDim).Render("stopped")
	}

	var lines []string
	lines = append(lines, name+"  "+state)

	if r, ok := m.latest[mi.Name]; ok {
		verdict := lipgloss.NewStyle().
			Foreground(statusColor(r.Status)).
			Bold(true).
			Render(string(r.Status))
		lines = append(lines, fmt.Sprintf("%s  score %.1f%%  at %s",
			verdict, r.Score, r.Timestamp.Format("15:04:05")))

		keys := make([]string, 0, len(r.Values))
		for k := range r.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var vals []string
		for _, k := range keys {
			vals = append(vals, fmt.Sprintf("%s=%.4g", k, r.Values[k]))
		}
		lines = append(lines, lipgloss.NewStyle().
			Foreground(colorLabel).
			Render(strings.Join(vals, "  ")))

		for _, issue := range r.Issues {
			lines = append(lines, lipgloss.NewStyle().
				Foreground(statusColor(issue.Status)).
				Render(fmt.Sprintf("  ! %s %s=%.4g (+%.1f)",
					issue.Status, issue.Parameter, issue.Value, issue.RiskContribution)))
		}
	} else {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(colorDim).
			Render("no readings yet"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Width(width - 2).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

func (m model) renderFooter(width int) string {
	help := "q quit   ↑/↓ scroll   space pause"
	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Foreground(colorDim).
		Width(width).
		Padding(0, 1).
		Render(help)
}
