package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// fetchResultMsg carries the retrieval state a fetch returned.
type fetchResultMsg struct {
	state model.RetrievalState
	err   error
}

// loggedOutMsg reports that the session was cleared from this page.
type loggedOutMsg struct{}

type listingsPage struct {
	ctx  context.Context
	core Core
	keys keyMap

	table   table.Model
	spinner spinner.Model

	state model.RetrievalState
	// last is the most recently loaded result; it bounds page navigation
	// while a new page is loading or after a failure.
	last   *model.PageResult
	notice string
}

func newListingsPage(ctx context.Context, core Core, keys keyMap) *listingsPage {
	t := table.New(
		table.WithColumns(listingColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &listingsPage{
		ctx:     ctx,
		core:    core,
		keys:    keys,
		table:   t,
		spinner: s,
		state:   model.IdleState(),
	}
}

func listingColumns(width int) []table.Column {
	// Fixed columns first; the link takes the remaining width.
	cols := []table.Column{
		{Title: "Brand", Width: 14},
		{Title: "Model", Width: 18},
		{Title: "Year", Width: 6},
		{Title: "Price", Width: 14},
		{Title: "Color", Width: 10},
	}
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	return append(cols, table.Column{Title: "Link", Width: max(width-used, 20)})
}

func (p *listingsPage) ID() string { return listingsPageID }

func (p *listingsPage) SetNotice(notice string) { p.notice = notice }

func (p *listingsPage) Init() tea.Cmd {
	p.last = nil
	p.table.SetRows(nil)
	return tea.Batch(p.spinner.Tick, p.fetch(1))
}

// fetch marks page as loading and returns the command that retrieves it.
func (p *listingsPage) fetch(page int) tea.Cmd {
	p.state = model.RetrievalState{Status: model.StatusLoading, Page: page}
	ctx, core := p.ctx, p.core
	return func() tea.Msg {
		state, err := core.FetchPage(ctx, page)
		return fetchResultMsg{state: state, err: err}
	}
}

// totalPages is the navigable page count from the last loaded result.
func (p *listingsPage) totalPages() int {
	if p.last == nil {
		return 0
	}
	return p.last.TotalPages()
}

func (p *listingsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.table.SetColumns(listingColumns(msg.Width))
		p.table.SetHeight(max(msg.Height-8, 3))
		return nil, nil

	case fetchResultMsg:
		return p.applyResult(msg)

	case loggedOutMsg:
		return nil, &PageNav{PageID: loginPageID, Notice: "Logged out"}

	case spinner.TickMsg:
		if p.state.Status != model.StatusLoading {
			return nil, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return nil, nil
}

func (p *listingsPage) applyResult(msg fetchResultMsg) (tea.Cmd, *PageNav) {
	// A superseded result leaves the newer fetch in charge.
	if msg.err != nil || msg.state.Status == model.StatusLoading {
		return nil, nil
	}

	p.state = msg.state
	switch msg.state.Status {
	case model.StatusLoaded:
		p.last = msg.state.Result
		p.notice = ""
		p.table.SetRows(listingRows(msg.state.Result.Items))
		p.table.GotoTop()
	case model.StatusFailed:
		if msg.state.Err == model.ErrorKindSessionExpired {
			select {
			case r := <-p.core.Redirects():
				return nil, &PageNav{PageID: r.Target, Notice: r.Reason.Message()}
			default:
				return nil, &PageNav{PageID: loginPageID, Notice: msg.state.Err.Message()}
			}
		}
	}
	return nil, nil
}

func (p *listingsPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.Quit), key.Matches(msg, p.keys.ForceQuit):
		return tea.Quit, nil

	case key.Matches(msg, p.keys.Next):
		if p.last == nil || !p.last.HasNext() {
			return nil, nil
		}
		return tea.Batch(p.spinner.Tick, p.fetch(model.ClampPage(p.last.Page+1, p.totalPages()))), nil

	case key.Matches(msg, p.keys.Prev):
		if p.last == nil || !p.last.HasPrevious() {
			return nil, nil
		}
		return tea.Batch(p.spinner.Tick, p.fetch(model.ClampPage(p.last.Page-1, p.totalPages()))), nil

	case key.Matches(msg, p.keys.Refresh):
		page := 1
		if p.state.Page > 0 {
			page = model.ClampPage(p.state.Page, p.totalPages())
		}
		return tea.Batch(p.spinner.Tick, p.fetch(page)), nil

	case key.Matches(msg, p.keys.Logout):
		ctx, core := p.ctx, p.core
		return func() tea.Msg {
			_ = core.Logout(ctx)
			return loggedOutMsg{}
		}, nil
	}

	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return cmd, nil
}

func listingRows(items []model.ListingRecord) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, l := range items {
		rows = append(rows, table.Row{
			l.Brand,
			l.Model,
			l.DisplayYear(),
			l.DisplayPrice(),
			l.DisplayColor(),
			l.URL,
		})
	}
	return rows
}

// pageSummary renders "Page p of N (t total)", or "" for a single page.
func pageSummary(r *model.PageResult) string {
	if r == nil || r.TotalPages() <= 1 {
		return ""
	}
	return fmt.Sprintf("Page %d of %d (%d total)", r.Page, r.TotalPages(), r.Total)
}

func (p *listingsPage) View(_, _ int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Cars"))
	b.WriteString("\n")
	if p.last != nil {
		// The total stays visible while the next page loads.
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d listings found", p.last.Total)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if p.notice != "" {
		b.WriteString(noticeStyle.Render(p.notice))
		b.WriteString("\n\n")
	}

	switch p.state.Status {
	case model.StatusLoading:
		b.WriteString(p.spinner.View() + " Loading cars...")
	case model.StatusFailed:
		b.WriteString(errorStyle.Render(p.state.Err.Message()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("press r to retry"))
	case model.StatusLoaded:
		if len(p.state.Result.Items) == 0 {
			b.WriteString("No cars found\n")
			b.WriteString(mutedStyle.Render("The scraper will populate data shortly."))
			break
		}
		b.WriteString(p.table.View())
		if s := pageSummary(p.state.Result); s != "" {
			b.WriteString("\n")
			b.WriteString(s)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(helpLine(p.keys.Prev, p.keys.Next, p.keys.Refresh, p.keys.Logout, p.keys.Quit))
	return b.String()
}
