package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// loginResultMsg carries the outcome of a login exchange.
type loginResultMsg struct {
	err error
}

type loginPage struct {
	ctx  context.Context
	core Core
	keys keyMap

	username textinput.Model
	password textinput.Model
	focus    int

	submitting bool
	notice     string
	err        string
}

func newLoginPage(ctx context.Context, core Core, keys keyMap) *loginPage {
	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "Username: "
	username.CharLimit = 128

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 256

	return &loginPage{
		ctx:      ctx,
		core:     core,
		keys:     keys,
		username: username,
		password: password,
	}
}

func (p *loginPage) ID() string { return loginPageID }

func (p *loginPage) SetNotice(notice string) { p.notice = notice }

func (p *loginPage) Init() tea.Cmd {
	p.password.Reset()
	p.submitting = false
	p.err = ""
	p.setFocus(0)
	return textinput.Blink
}

func (p *loginPage) setFocus(i int) {
	p.focus = i
	if i == 0 {
		p.username.Focus()
		p.password.Blur()
		return
	}
	p.username.Blur()
	p.password.Focus()
}

func (p *loginPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case loginResultMsg:
		p.submitting = false
		if msg.err != nil {
			p.err = loginErrorText(msg.err)
			p.password.Reset()
			p.setFocus(1)
			return nil, nil
		}
		p.notice = ""
		return nil, &PageNav{PageID: listingsPageID}

	case tea.KeyMsg:
		if key.Matches(msg, p.keys.ForceQuit) {
			return tea.Quit, nil
		}
		if p.submitting {
			return nil, nil
		}
		switch {
		case key.Matches(msg, p.keys.NextField):
			p.setFocus(1 - p.focus)
			return nil, nil
		case key.Matches(msg, p.keys.Submit):
			if p.focus == 0 {
				p.setFocus(1)
				return nil, nil
			}
			return p.submit(), nil
		}
	}

	var cmd tea.Cmd
	if p.focus == 0 {
		p.username, cmd = p.username.Update(msg)
	} else {
		p.password, cmd = p.password.Update(msg)
	}
	return cmd, nil
}

// submit validates the form and returns the command performing the login.
func (p *loginPage) submit() tea.Cmd {
	username := strings.TrimSpace(p.username.Value())
	password := p.password.Value()
	if username == "" || password == "" {
		p.err = "Username and password are required"
		return nil
	}

	p.submitting = true
	p.err = ""
	ctx, core := p.ctx, p.core
	return func() tea.Msg {
		return loginResultMsg{err: core.Login(ctx, username, password)}
	}
}

func loginErrorText(err error) string {
	var loginErr *model.LoginError
	if errors.As(err, &loginErr) && loginErr.Kind == model.ErrorKindLoginFailed {
		return loginErr.Kind.Message()
	}
	return "Login failed, please try again"
}

func (p *loginPage) View(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("carsensor"))
	b.WriteString("\n\n")
	if p.notice != "" {
		b.WriteString(noticeStyle.Render(p.notice))
		b.WriteString("\n\n")
	}
	b.WriteString(p.username.View())
	b.WriteString("\n")
	b.WriteString(p.password.View())
	b.WriteString("\n\n")
	switch {
	case p.submitting:
		b.WriteString(mutedStyle.Render("Logging in..."))
	case p.err != "":
		b.WriteString(errorStyle.Render(p.err))
	}
	b.WriteString("\n")
	b.WriteString(helpLine(p.keys.NextField, p.keys.Submit, p.keys.ForceQuit))

	form := formStyle.Render(b.String())
	if width == 0 || height == 0 {
		return form
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, form)
}
