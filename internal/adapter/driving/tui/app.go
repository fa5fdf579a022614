package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// Page IDs.
const (
	loginPageID    = model.LoginTarget
	listingsPageID = "listings"
)

// Core is the slice of the application core the TUI drives.
// *application.Core satisfies it.
type Core interface {
	Decide(ctx context.Context) model.Decision
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	FetchPage(ctx context.Context, page int) (model.RetrievalState, error)
	Redirects() <-chan model.Redirect
}

// App is the top-level Bubble Tea model that routes between pages. Protected
// pages are only entered when the route guard allows it; otherwise the
// guard's redirect target is entered instead.
type App struct {
	ctx        context.Context
	core       Core
	pages      map[string]Page
	protected  map[string]bool
	activePage string
	width      int
	height     int
}

// NewApp creates the App with its login and listings pages. The starting
// page is the listings page when a session exists and the login page
// otherwise.
func NewApp(ctx context.Context, core Core) *App {
	keys := defaultKeyMap()
	login := newLoginPage(ctx, core, keys)
	listings := newListingsPage(ctx, core, keys)

	a := &App{
		ctx:  ctx,
		core: core,
		pages: map[string]Page{
			login.ID():    login,
			listings.ID(): listings,
		},
		protected: map[string]bool{listings.ID(): true},
	}
	a.activePage = a.resolve(listingsPageID)
	return a
}

// ActivePage returns the ID of the page currently shown.
func (a *App) ActivePage() string {
	return a.activePage
}

// resolve applies the route guard to id. The guard reads the session store
// directly, so a credential removed by another process is noticed here.
func (a *App) resolve(id string) string {
	if !a.protected[id] {
		return id
	}
	if d := a.core.Decide(a.ctx); !d.Allow {
		return d.Redirect
	}
	return id
}

func (a *App) Init() tea.Cmd {
	if p, ok := a.pages[a.activePage]; ok {
		return p.Init()
	}
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		a.width = wsm.Width
		a.height = wsm.Height
	}

	p, ok := a.pages[a.activePage]
	if !ok {
		return a, nil
	}

	cmd, nav := p.Update(msg)
	if nav == nil {
		return a, cmd
	}

	target := a.resolve(nav.PageID)
	next, exists := a.pages[target]
	if !exists {
		return a, cmd
	}
	if r, ok := next.(noticeReceiver); ok {
		r.SetNotice(nav.Notice)
	}
	a.activePage = target
	return a, tea.Batch(cmd, next.Init())
}

func (a *App) View() string {
	if p, ok := a.pages[a.activePage]; ok {
		return p.View(a.width, a.height)
	}
	return "No active page"
}
