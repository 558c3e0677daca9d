package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kward/boardshelf"
)

var (
	serverFlag = flag.String("server", "http://localhost:8080", "Boardshelf server URL")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	itemStyle = lipgloss.NewStyle().
			MarginLeft(2)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")).
				Bold(true).
				MarginLeft(2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginLeft(2)

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			MarginLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			MarginLeft(2)
)

func main() {
	flag.Parse()

	p := tea.NewProgram(
		initialModel(*serverFlag),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
}

type screen int

const (
	screenLogin screen = iota
	screenSyncing
	screenCollection
)

var sortFields = []string{
	boardshelf.SortTitle,
	boardshelf.SortYearPublished,
	boardshelf.SortRating,
	boardshelf.SortGeekRating,
	boardshelf.SortRank,
	boardshelf.SortComplexity,
	boardshelf.SortPlayingTime,
	boardshelf.SortYourRating,
}

type model struct {
	serverURL string
	screen    screen

	// Login state
	username textinput.Model
	spin     spinner.Model
	jobID    string

	// Collection state
	games   []boardshelf.CollectionEntry
	stats   boardshelf.Stats
	cursor  int
	filters boardshelf.Filters
	sortIdx int

	// UI state
	width  int
	height int
	error  string
}

func initialModel(serverURL string) model {
	ti := textinput.New()
	ti.Placeholder = "BGG username"
	ti.Focus()
	ti.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		serverURL: serverURL,
		screen:    screenLogin,
		username:  ti,
		spin:      sp,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case syncStarted:
		m.jobID = msg.id
		m.error = ""
		return m, tea.Batch(m.spin.Tick, m.pollSync())

	case syncPending:
		return m, m.pollSync()

	case syncFinished:
		return m, m.loadCollection()

	case collectionLoaded:
		m.screen = screenCollection
		m.games = msg.games
		m.stats = msg.stats
		if m.cursor >= len(m.games) {
			m.cursor = 0
		}
		m.error = ""
		return m, nil

	case apiError:
		m.error = msg.error
		if m.screen == screenSyncing {
			m.screen = screenLogin
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.screen {
		case screenLogin:
			return m.updateLogin(msg)
		case screenSyncing:
			return m.updateSyncing(msg)
		case screenCollection:
			return m.updateCollection(msg)
		}
	}

	return m, nil
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		if m.username.Value() == "" {
			return m, nil
		}
		m.screen = screenSyncing
		m.error = ""
		return m, tea.Batch(m.spin.Tick, m.startSync())
	}

	var cmd tea.Cmd
	m.username, cmd = m.username.Update(msg)
	return m, cmd
}

func (m model) updateSyncing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		m.screen = screenLogin
		return m, nil
	}
	return m, nil
}

func (m model) updateCollection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.games)-1 {
			m.cursor++
		}

	case "e":
		m.filters.IncludeExpansions = !m.filters.IncludeExpansions
		return m, m.loadCollection()

	case "s":
		m.sortIdx = (m.sortIdx + 1) % len(sortFields)
		m.filters.SortField = sortFields[m.sortIdx]
		return m, m.loadCollection()

	case "d":
		m.filters.SortDescending = !m.filters.SortDescending
		return m, m.loadCollection()

	case "+", "=":
		n := 1
		if m.filters.PlayerCount != nil {
			n = *m.filters.PlayerCount + 1
		}
		m.filters.PlayerCount = &n
		return m, m.loadCollection()

	case "-":
		if m.filters.PlayerCount == nil {
			return m, nil
		}
		if n := *m.filters.PlayerCount - 1; n >= 1 {
			m.filters.PlayerCount = &n
		} else {
			m.filters.PlayerCount = nil
		}
		return m, m.loadCollection()

	case "p":
		m.filters.PlayerCountMode = (m.filters.PlayerCountMode + 1) % 3
		return m, m.loadCollection()

	case "r":
		m.screen = screenSyncing
		return m, tea.Batch(m.spin.Tick, m.startSync())
	}

	return m, nil
}

func (m model) View() string {
	switch m.screen {
	case screenLogin:
		return m.viewLogin()
	case screenSyncing:
		return m.viewSyncing()
	case screenCollection:
		return m.viewCollection()
	default:
		return "Unknown screen"
	}
}

func (m model) viewLogin() string {
	title := titleStyle.Render("Boardshelf")
	prompt := itemStyle.Render("Whose collection should we fetch?")
	input := itemStyle.Render(m.username.View())
	help := statusBarStyle.Render("Enter to sync, Esc to quit")

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", prompt, input, "", help)

	if m.error != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, "",
			errorStyle.Render(fmt.Sprintf("Error: %s", m.error)))
	}

	return content
}

func (m model) viewSyncing() string {
	title := titleStyle.Render("Boardshelf")
	status := itemStyle.Render(fmt.Sprintf("%s Syncing %s from BoardGameGeek...",
		m.spin.View(), m.username.Value()))
	note := statusBarStyle.Render("First syncs can take a while; BGG queues new collection exports.")
	help := statusBarStyle.Render("q to go back, Ctrl+C to quit")

	return lipgloss.JoinVertical(lipgloss.Left, title, "", status, "", note, "", help)
}

func (m model) viewCollection() string {
	title := titleStyle.Render(fmt.Sprintf("Boardshelf - %s", m.username.Value()))

	stats := statusBarStyle.Render(fmt.Sprintf("%d games (%d base, %d expansions)",
		m.stats.Games, m.stats.BaseGames, m.stats.Expansions))

	var rows []string
	rows = append(rows, itemStyle.Render(fmt.Sprintf("%-40s %6s %7s %7s %7s",
		"Title", "Year", "Rating", "Weight", "Players")))

	visible := m.visibleWindow()
	for i, g := range m.games {
		if i < visible.start || i >= visible.end {
			continue
		}
		line := fmt.Sprintf("%-40s %6d %7.1f %7.2f %4d-%d",
			truncate(g.Title, 40), g.YearPublished, g.AverageRating,
			g.AverageWeight, g.MinPlayers, g.MaxPlayers)
		if i == m.cursor {
			rows = append(rows, selectedItemStyle.Render("> "+line))
		} else {
			rows = append(rows, itemStyle.Render("  "+line))
		}
	}
	if len(m.games) == 0 {
		rows = append(rows, itemStyle.Render("No games match the current filters."))
	}

	table := tableStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

	filters := statusBarStyle.Render(m.filterSummary())
	help := statusBarStyle.Render("j/k: move | e: expansions | s: sort | d: direction | +/-: players | p: player mode | r: resync | q: quit")

	content := []string{title, "", stats, table, filters, "", help}
	if m.error != "" {
		content = append(content, "", errorStyle.Render(fmt.Sprintf("Error: %s", m.error)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, content...)
}

type window struct {
	start, end int
}

// visibleWindow keeps the cursor inside the rows that fit the terminal.
func (m model) visibleWindow() window {
	rows := m.height - 12
	if rows < 5 {
		rows = 5
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := start + rows
	if end > len(m.games) {
		end = len(m.games)
	}
	return window{start: start, end: end}
}

func (m model) filterSummary() string {
	summary := "Filters:"
	if m.filters.PlayerCount != nil {
		mode := "possible"
		switch m.filters.PlayerCountMode {
		case boardshelf.PlayerCountRecommended:
			mode = "recommended"
		case boardshelf.PlayerCountBest:
			mode = "best"
		}
		summary += fmt.Sprintf(" %d players (%s) |", *m.filters.PlayerCount, mode)
	}
	if m.filters.IncludeExpansions {
		summary += " expansions shown |"
	} else {
		summary += " expansions hidden |"
	}
	sortField := m.filters.SortField
	if sortField == "" {
		sortField = "none"
	}
	dir := "asc"
	if m.filters.SortDescending {
		dir = "desc"
	}
	return summary + fmt.Sprintf(" sort: %s (%s)", sortField, dir)
}

// truncate shortens a title to n display cells without splitting a
// multi-byte rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// API types matching server
type apiSyncJob struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Status   string `json:"status"`
	Error    string `json:"error"`
}

type apiCollection struct {
	Games []boardshelf.CollectionEntry `json:"games"`
	Stats boardshelf.Stats             `json:"stats"`
}

// Messages
type syncStarted struct {
	id string
}

type syncPending struct{}

type syncFinished struct{}

type collectionLoaded struct {
	games []boardshelf.CollectionEntry
	stats boardshelf.Stats
}

type apiError struct {
	error string
}

// Commands
func (m model) startSync() tea.Cmd {
	username := m.username.Value()
	return func() tea.Msg {
		resp, err := http.Post(m.serverURL+"/user/"+url.PathEscape(username)+"/sync", "application/json", http.NoBody)
		if err != nil {
			return apiError{error: err.Error()}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			return apiError{error: fmt.Sprintf("server error: %d", resp.StatusCode)}
		}

		var job apiSyncJob
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return apiError{error: err.Error()}
		}
		return syncStarted{id: job.ID}
	}
}

func (m model) pollSync() tea.Cmd {
	jobID := m.jobID
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		resp, err := http.Get(m.serverURL + "/sync/" + url.PathEscape(jobID))
		if err != nil {
			return apiError{error: err.Error()}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return apiError{error: fmt.Sprintf("server error: %d", resp.StatusCode)}
		}

		var job apiSyncJob
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return apiError{error: err.Error()}
		}

		switch job.Status {
		case "done":
			return syncFinished{}
		case "failed":
			return apiError{error: job.Error}
		default:
			return syncPending{}
		}
	})
}

func (m model) loadCollection() tea.Cmd {
	username := m.username.Value()
	filters := m.filters
	return func() tea.Msg {
		q := url.Values{}
		if filters.PlayerCount != nil {
			q.Set("players", strconv.Itoa(*filters.PlayerCount))
		}
		switch filters.PlayerCountMode {
		case boardshelf.PlayerCountRecommended:
			q.Set("players_mode", "recommended")
		case boardshelf.PlayerCountBest:
			q.Set("players_mode", "best")
		}
		if filters.IncludeExpansions {
			q.Set("expansions", "true")
		}
		if filters.SortField != "" {
			q.Set("sort", filters.SortField)
		}
		if filters.SortDescending {
			q.Set("dir", "desc")
		}

		u := m.serverURL + "/user/" + url.PathEscape(username) + "/games"
		if enc := q.Encode(); enc != "" {
			u += "?" + enc
		}

		resp, err := http.Get(u)
		if err != nil {
			return apiError{error: err.Error()}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return apiError{error: fmt.Sprintf("server error: %d", resp.StatusCode)}
		}

		var body apiCollection
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return apiError{error: err.Error()}
		}
		return collectionLoaded{games: body.Games, stats: body.Stats}
	}
}
