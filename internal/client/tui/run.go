package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gartstein/directory/internal/client/api"
	"github.com/gartstein/directory/internal/client/view"
)

// Notifier forwards API notifications into a running program as toasts.
type Notifier struct {
	send func(tea.Msg)
}

func (n *Notifier) Success(msg string) { n.send(ToastMsg{Level: view.LevelInfo, Text: msg}) }
func (n *Notifier) Error(msg string)   { n.send(ToastMsg{Level: view.LevelError, Text: msg}) }

// Run starts the browser against the API at baseURL and blocks until the
// user quits or ctx is cancelled.
func Run(ctx context.Context, baseURL string, opts ...api.Option) error {
	n := &Notifier{}
	client := api.New(baseURL, append(opts, api.WithNotifier(n))...)

	p := tea.NewProgram(New(ctx, client), tea.WithAltScreen(), tea.WithContext(ctx))
	n.send = p.Send
	_, err := p.Run()
	return err
}
