// Package tui is the terminal presentation layer: it renders the
// metadata-only catalog cache, drives search and category filters, and
// asks the engine to hydrate a single entry when the user selects it.
// It never reads or writes the stores directly.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/zinkereru/megakino/internal/account"
	"github.com/zinkereru/megakino/internal/catalog"
	"github.com/zinkereru/megakino/internal/domain"
	"github.com/zinkereru/megakino/internal/metagen"
	"github.com/zinkereru/megakino/internal/search"
	"github.com/zinkereru/megakino/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateSearching
	StateDetail
	StateConfirmWipe
	StateRedeemCode
	StateUpload
)

// viewFilter cycles all → movies → series
var viewFilters = []domain.Kind{"", domain.KindMovie, domain.KindSeries}

// Messages from async engine commands

type hydratedMsg struct {
	entry *domain.Movie
	err   error
}

type catalogChangedMsg struct {
	status string
	err    error
}

type codeGeneratedMsg struct {
	code domain.PremiumCode
	err  error
}

type codeRedeemedMsg struct {
	user *domain.User
	err  error
}

// Model is the main Bubble Tea model for the application
type Model struct {
	engine   *catalog.Engine
	accounts *account.Store
	metagen  *metagen.Client // nil when no API key is configured
	user     *domain.User
	logger   *slog.Logger

	state  ApplicationState
	keys   KeyMap
	width  int
	height int
	cursor int
	status string

	searchInput textinput.Model
	codeInput   textinput.Model
	pathInput   textinput.Model

	categoryIdx int
	viewIdx     int

	results []search.Result
	detail  *domain.Movie
}

// NewModel creates the TUI model over an initialized engine. The metagen
// client is optional; without one, uploads keep whatever metadata the
// entry file carries.
func NewModel(engine *catalog.Engine, accounts *account.Store, gen *metagen.Client, user *domain.User, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	si := textinput.New()
	si.Placeholder = "search titles"
	si.CharLimit = 64

	ci := textinput.New()
	ci.Placeholder = "MK-0000-XXXX"
	ci.CharLimit = 12

	pi := textinput.New()
	pi.Placeholder = "/path/to/entry.json"
	pi.CharLimit = 256

	m := Model{
		engine:      engine,
		accounts:    accounts,
		metagen:     gen,
		user:        user,
		logger:      logger,
		keys:        DefaultKeyMap(),
		searchInput: si,
		codeInput:   ci,
		pathInput:   pi,
	}
	m.refilter()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// refilter recomputes the visible rows from the engine cache.
func (m *Model) refilter() {
	m.results = search.Filter(m.engine.Cached(), search.Query{
		Term:  m.searchInput.Value(),
		Genre: domain.Categories[m.categoryIdx],
		Kind:  viewFilters[m.viewIdx],
	})
	if m.cursor >= len(m.results) {
		m.cursor = max(0, len(m.results)-1)
	}
}

func (m Model) selected() *domain.Movie {
	if m.cursor < 0 || m.cursor >= len(m.results) {
		return nil
	}
	return m.results[m.cursor].Movie
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case hydratedMsg:
		if msg.err != nil {
			m.status = styles.ErrorStyle.Render("Playback failed: " + msg.err.Error())
			return m, nil
		}
		m.detail = msg.entry
		m.state = StateDetail
		return m, nil

	case catalogChangedMsg:
		if msg.err != nil {
			m.status = styles.ErrorStyle.Render(msg.err.Error())
		} else {
			m.status = styles.SuccessStyle.Render(msg.status)
		}
		m.refilter()
		return m, nil

	case codeGeneratedMsg:
		if msg.err != nil {
			m.status = styles.ErrorStyle.Render(msg.err.Error())
		} else {
			m.status = styles.PremiumStyle.Render("New code: " + msg.code.Code)
		}
		return m, nil

	case codeRedeemedMsg:
		if msg.err != nil {
			m.status = styles.ErrorStyle.Render("Code rejected")
		} else {
			m.user.IsPremium = true
			m.status = styles.PremiumStyle.Render("Premium unlocked!")
		}
		m.state = StateBrowsing
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case StateSearching:
		switch msg.String() {
		case "enter", "esc":
			m.searchInput.Blur()
			m.state = StateBrowsing
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.refilter()
		return m, cmd

	case StateRedeemCode:
		switch msg.String() {
		case "esc":
			m.codeInput.Blur()
			m.state = StateBrowsing
			return m, nil
		case "enter":
			code := strings.TrimSpace(m.codeInput.Value())
			m.codeInput.SetValue("")
			m.codeInput.Blur()
			return m, m.redeemCmd(code)
		}
		var cmd tea.Cmd
		m.codeInput, cmd = m.codeInput.Update(msg)
		return m, cmd

	case StateUpload:
		switch msg.String() {
		case "esc":
			m.pathInput.Blur()
			m.state = StateBrowsing
			return m, nil
		case "enter":
			path := strings.TrimSpace(m.pathInput.Value())
			m.pathInput.SetValue("")
			m.pathInput.Blur()
			m.state = StateBrowsing
			m.status = styles.DimStyle.Render("Uploading...")
			return m, m.uploadCmd(path)
		}
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(msg)
		return m, cmd

	case StateConfirmWipe:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.state = StateBrowsing
			return m, m.wipeCmd()
		case key.Matches(msg, m.keys.Deny):
			m.state = StateBrowsing
			m.status = ""
			return m, nil
		}
		return m, nil

	case StateDetail:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Quit) {
			// Dropping the reference is what releases the hydrated blobs.
			m.detail = nil
			m.state = StateBrowsing
		}
		return m, nil
	}

	// StateBrowsing
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.results)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Enter):
		if sel := m.selected(); sel != nil {
			if sel.IsPremium && !m.user.IsPremium && !m.user.IsAdmin {
				m.status = styles.PremiumStyle.Render("Premium title — press p to redeem a code")
				return m, nil
			}
			return m, m.hydrateCmd(sel.ID)
		}

	case key.Matches(msg, m.keys.Filter):
		m.state = StateSearching
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Category):
		m.categoryIdx = (m.categoryIdx + 1) % len(domain.Categories)
		m.refilter()

	case key.Matches(msg, m.keys.View):
		m.viewIdx = (m.viewIdx + 1) % len(viewFilters)
		m.refilter()

	case key.Matches(msg, m.keys.Redeem):
		if !m.user.IsPremium {
			m.state = StateRedeemCode
			m.codeInput.Focus()
			return m, textinput.Blink
		}

	case key.Matches(msg, m.keys.Upload):
		if m.user.IsAdmin {
			m.state = StateUpload
			m.pathInput.Focus()
			return m, textinput.Blink
		}

	case key.Matches(msg, m.keys.Delete):
		if sel := m.selected(); sel != nil && m.user.IsAdmin {
			return m, m.deleteCmd(sel.ID, sel.Title)
		}

	case key.Matches(msg, m.keys.Wipe):
		if m.user.IsAdmin {
			m.state = StateConfirmWipe
		}

	case key.Matches(msg, m.keys.GenCode):
		if m.user.IsAdmin {
			return m, m.genCodeCmd()
		}

	case key.Matches(msg, m.keys.Sweep):
		if m.user.IsAdmin {
			return m, m.sweepCmd()
		}
	}

	return m, nil
}

// === Engine commands ===

// uploadCmd loads a composite entry from a JSON file and saves it. The
// file carries assets inline (base64 data or URL), the same shape the
// HTTP API accepts. Missing metadata is filled by the generation client
// when one is configured.
func (m Model) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		raw, err := os.ReadFile(path)
		if err != nil {
			return catalogChangedMsg{err: err}
		}
		var entry domain.Movie
		if err := json.Unmarshal(raw, &entry); err != nil {
			return catalogChangedMsg{err: fmt.Errorf("malformed entry file: %w", err)}
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		for i := range entry.Seasons {
			for j := range entry.Seasons[i].Episodes {
				if entry.Seasons[i].Episodes[j].ID == "" {
					entry.Seasons[i].Episodes[j].ID = uuid.NewString()
				}
			}
		}

		if m.metagen != nil && entry.Description == "" {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if meta, err := m.metagen.Generate(ctx, entry.Title); err == nil {
				entry.Description = meta.Description
				entry.Genre = meta.Genre
				entry.Rating = meta.Rating
				entry.Year = meta.Year
			} else {
				m.logger.Warn("metadata generation failed, keeping manual fields", "error", err)
			}
		}

		if err := m.engine.Save(&entry); err != nil {
			return catalogChangedMsg{err: err}
		}
		return catalogChangedMsg{status: "Uploaded " + entry.Title}
	}
}

func (m Model) hydrateCmd(id string) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.engine.Hydrate(id)
		return hydratedMsg{entry: entry, err: err}
	}
}

func (m Model) deleteCmd(id, title string) tea.Cmd {
	return func() tea.Msg {
		if err := m.engine.Remove(id); err != nil {
			return catalogChangedMsg{err: err}
		}
		return catalogChangedMsg{status: "Deleted " + title}
	}
}

func (m Model) wipeCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.engine.WipeAll(); err != nil {
			return catalogChangedMsg{err: err}
		}
		return catalogChangedMsg{status: "Catalog wiped"}
	}
}

func (m Model) sweepCmd() tea.Cmd {
	return func() tea.Msg {
		n, err := m.engine.Sweep()
		if err != nil {
			return catalogChangedMsg{err: err}
		}
		return catalogChangedMsg{status: fmt.Sprintf("Swept %d orphaned blobs", n)}
	}
}

func (m Model) genCodeCmd() tea.Cmd {
	return func() tea.Msg {
		code, err := m.accounts.GenerateCode(m.user.Username)
		return codeGeneratedMsg{code: code, err: err}
	}
}

func (m Model) redeemCmd(code string) tea.Cmd {
	return func() tea.Msg {
		user, err := m.accounts.RedeemCode(code, m.user.Username)
		return codeRedeemedMsg{user: user, err: err}
	}
}

// === View ===

func (m Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("MEGAKINO+  %s", m.user.Username)
	if m.user.IsPremium {
		header += " ★"
	}
	b.WriteString(styles.HeaderStyle.Render(header))
	b.WriteString("\n\n")

	switch m.state {
	case StateDetail:
		b.WriteString(m.viewDetail())
	case StateConfirmWipe:
		b.WriteString(styles.ErrorStyle.Render("Wipe the ENTIRE catalog? This cannot be undone.  (y/n)"))
	case StateRedeemCode:
		b.WriteString("Enter premium code: " + m.codeInput.View())
	case StateUpload:
		b.WriteString("Entry file: " + m.pathInput.View())
	default:
		b.WriteString(m.viewList())
	}

	b.WriteString("\n\n")
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(styles.DimStyle.Render(m.footer()))
	return b.String()
}

func (m Model) viewList() string {
	var b strings.Builder

	filterLine := fmt.Sprintf("Category: %s  View: %s",
		domain.Categories[m.categoryIdx], viewName(viewFilters[m.viewIdx]))
	if m.state == StateSearching || m.searchInput.Value() != "" {
		filterLine += "  Search: " + m.searchInput.View()
	}
	b.WriteString(styles.SubtitleStyle.Render(filterLine))
	b.WriteString("\n\n")

	if len(m.results) == 0 {
		b.WriteString(styles.DimStyle.Render("Nothing here. Upload something!"))
		return b.String()
	}

	for i, res := range m.results {
		rec := res.Movie
		line := fmt.Sprintf("%-40s %-10s %s", truncate(rec.Title, 40), rec.Genre, rec.Describe())
		if rec.IsPremium {
			line += "  " + styles.PremiumStyle.Render("PRO")
		}
		if i == m.cursor {
			b.WriteString(styles.SelectedStyle.Render(line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewDetail() string {
	d := m.detail
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(d.Title))
	b.WriteString("\n")
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("%s · %d · %.1f", d.Genre, d.Year, d.Rating)))
	b.WriteString("\n\n")
	b.WriteString(d.Description)
	b.WriteString("\n\n")

	b.WriteString("Poster:   " + assetLabel(d.Poster) + "\n")
	b.WriteString("Backdrop: " + assetLabel(d.Backdrop) + "\n")

	if d.Kind == domain.KindSeries {
		for _, s := range d.Seasons {
			b.WriteString(fmt.Sprintf("\nSeason %d\n", s.Number))
			for _, e := range s.Episodes {
				b.WriteString(fmt.Sprintf("  E%02d %-30s %s\n", e.Number, truncate(e.Title, 30), assetLabel(e.Video)))
			}
		}
	} else {
		b.WriteString("Video:    " + assetLabel(d.Video) + "\n")
	}
	return b.String()
}

func (m Model) footer() string {
	if m.state == StateDetail {
		return "esc back"
	}
	help := "/ search · c category · v view · enter play · q quit"
	if m.user.IsAdmin {
		help += " · u upload · d delete · W wipe · g code · s sweep"
	} else if !m.user.IsPremium {
		help += " · p redeem"
	}
	return help
}

func assetLabel(a *domain.Asset) string {
	switch {
	case a.IsEmbedded():
		return styles.SuccessStyle.Render(fmt.Sprintf("embedded (%s)", formatSize(len(a.Bytes))))
	case a.IsRemote():
		return styles.AccentStyle.Render(a.URL)
	default:
		return styles.DimStyle.Render("unavailable")
	}
}

func formatSize(n int) string {
	const (
		mb = 1024 * 1024
		kb = 1024
	)
	switch {
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%d KB", n/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func viewName(k domain.Kind) string {
	switch k {
	case domain.KindMovie:
		return "Movies"
	case domain.KindSeries:
		return "Series"
	default:
		return "All"
	}
}

// truncate shortens s to n display runes, never splitting a rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
