// Package tui is the interactive company browser. It is a bubbletea shell
// around the view reducers: key presses and network completions become
// reducer calls, and the returned effects become commands.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gartstein/directory/internal/client/view"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

const toastTTL = 3 * time.Second

// Service is the company API as used by the browser. *api.Client
// satisfies it.
type Service interface {
	List(ctx context.Context, p query.Params) (*models.Page, error)
	Create(ctx context.Context, in schema.Candidate) (*models.Company, error)
	Update(ctx context.Context, id string, in schema.Candidate) (*models.Company, error)
	Delete(ctx context.Context, id string) error
}

type (
	listLoadedMsg struct {
		seq  uint64
		page *models.Page
		err  error
	}
	searchSettledMsg struct{ token uint64 }
	submittedMsg     struct {
		seq uint64
		err error
	}
	deletedMsg struct {
		seq uint64
		err error
	}
	clearToastMsg struct{ id int }
)

// ToastMsg shows a transient message at the bottom of the screen.
type ToastMsg struct {
	Level view.Level
	Text  string
}

type toast struct {
	id    int
	level view.Level
	text  string
}

// Model is the bubbletea model of the browser.
type Model struct {
	ctx       context.Context
	svc       Service
	validator *schema.Validator

	list view.ListState
	form view.FormState
	del  view.DeleteState

	table     table.Model
	search    textinput.Model
	searching bool
	fields    []string
	inputs    []textinput.Model
	focus     int

	toast   toast
	styles  styles
	initCmd tea.Cmd
}

// New builds the browser and queues the first page load.
func New(ctx context.Context, svc Service) Model {
	search := textinput.New()
	search.Placeholder = "Search companies..."
	search.Prompt = "Search: "
	search.CharLimit = 100
	search.Width = 40

	m := Model{
		ctx:       ctx,
		svc:       svc,
		validator: schema.NewValidator(schema.EnforceOptions()),
		table: table.New(
			table.WithColumns(columns()),
			table.WithFocused(true),
			table.WithHeight(view.PageSize+1),
		),
		search: search,
		fields: schema.Fields(),
		styles: defaultStyles(),
	}
	for _, f := range m.fields {
		in := textinput.New()
		in.Prompt = ""
		in.Width = 50
		if r, ok := schema.RuleFor(f); ok && r.MaxLength > 0 {
			in.CharLimit = r.MaxLength
		}
		m.inputs = append(m.inputs, in)
	}

	var eff view.Effect
	m.list, eff = view.NewListState().Load()
	m.initCmd = m.run(eff)
	return m
}

func columns() []table.Column {
	return []table.Column{
		{Title: view.Label("name"), Width: 24},
		{Title: view.Label("industry"), Width: 14},
		{Title: view.Label("location"), Width: 14},
		{Title: view.Label("email"), Width: 26},
		{Title: "Employees", Width: 10},
		{Title: "Founded", Width: 8},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.initCmd, textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.form.Phase != view.FormClosed:
			return m.updateForm(msg)
		case m.del.Phase != view.DeleteClosed:
			return m.updateDelete(msg)
		case m.searching:
			return m.updateSearch(msg)
		default:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		return m, nil

	case listLoadedMsg:
		var eff view.Effect
		m.list, eff = m.list.Loaded(msg.seq, msg.page, msg.err)
		m.syncTable()
		cmd := m.run(eff)
		return m, cmd

	case searchSettledMsg:
		var eff view.Effect
		m.list, eff = m.list.SearchSettled(msg.token)
		cmd := m.run(eff)
		return m, cmd

	case submittedMsg:
		var eff view.Effect
		m.form, eff = m.form.Submitted(msg.seq, msg.err)
		cmd := m.run(eff)
		return m, cmd

	case deletedMsg:
		var eff view.Effect
		m.del, eff = m.del.Deleted(msg.seq, msg.err)
		cmd := m.run(eff)
		return m, cmd

	case ToastMsg:
		m.toast = toast{id: m.toast.id + 1, level: msg.Level, text: msg.Text}
		id := m.toast.id
		return m, tea.Tick(toastTTL, func(time.Time) tea.Msg { return clearToastMsg{id: id} })

	case clearToastMsg:
		if msg.id == m.toast.id {
			m.toast.text = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.searching {
		m.search, cmd = m.search.Update(msg)
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var eff view.Effect
	f := m.list.Filters

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd
	case "i":
		f.Industry = view.Cycle(schema.IndustryOptions, f.Industry)
		m.list, eff = m.list.SetFilters(f)
	case "l":
		f.Location = view.Cycle(schema.LocationOptions, f.Location)
		m.list, eff = m.list.SetFilters(f)
	case "s":
		f.SortBy = view.NextSort(f.SortBy)
		m.list, eff = m.list.SetFilters(f)
	case "o":
		f.SortOrder = view.ToggleOrder(f.SortOrder)
		m.list, eff = m.list.SetFilters(f)
	case "right", "n":
		m.list, eff = m.list.NextPage()
	case "left", "p":
		m.list, eff = m.list.PrevPage()
	case "r":
		m.list, eff = m.list.Retry()
	case "a":
		m.form = m.form.OpenAdd()
		cmd := m.syncInputs()
		return m, cmd
	case "e", "enter":
		if c, ok := m.selected(); ok {
			m.form = m.form.OpenEdit(c)
			cmd := m.syncInputs()
			return m, cmd
		}
		return m, nil
	case "d":
		if c, ok := m.selected(); ok {
			m.del = m.del.Open(c)
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	cmd := m.run(eff)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		var eff view.Effect
		m.list, eff = m.list.TypeSearch(v)
		effCmd := m.run(eff)
		return m, tea.Batch(cmd, effCmd)
	}
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form.Phase == view.FormSubmitting {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.form = m.form.Close()
		return m, nil
	case "tab", "down":
		cmd := m.focusField(m.focus + 1)
		return m, cmd
	case "shift+tab", "up":
		cmd := m.focusField(m.focus - 1)
		return m, cmd
	case "enter":
		if m.focus < len(m.inputs)-1 {
			cmd := m.focusField(m.focus + 1)
			return m, cmd
		}
		return m.submit()
	case "ctrl+s":
		return m.submit()
	case "ctrl+o":
		field := m.fields[m.focus]
		if r, ok := schema.RuleFor(field); ok && len(r.Options) > 0 {
			next := view.Cycle(r.Options, m.form.Values[field])
			m.inputs[m.focus].SetValue(next)
			m.form = m.form.Edit(field, next)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	field := m.fields[m.focus]
	if v := m.inputs[m.focus].Value(); v != m.form.Values[field] {
		m.form = m.form.Edit(field, v)
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	var eff view.Effect
	m.form, eff = m.form.Submit(m.validator)
	cmd := m.run(eff)
	return m, cmd
}

func (m Model) updateDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.del.Phase == view.DeleteRunning {
		return m, nil
	}
	switch msg.String() {
	case "y", "enter":
		var eff view.Effect
		m.del, eff = m.del.Confirm()
		cmd := m.run(eff)
		return m, cmd
	case "n", "esc":
		m.del = m.del.Cancel()
	}
	return m, nil
}

// run turns an effect into a command. Refresh is resolved here because it
// feeds straight back into the list reducer.
func (m *Model) run(eff view.Effect) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	switch e := eff.(type) {
	case view.Fetch:
		return func() tea.Msg {
			page, err := svc.List(ctx, e.Params)
			return listLoadedMsg{seq: e.Seq, page: page, err: err}
		}
	case view.Debounce:
		return tea.Tick(e.Delay, func(time.Time) tea.Msg {
			return searchSettledMsg{token: e.Token}
		})
	case view.Notify:
		return func() tea.Msg { return ToastMsg{Level: e.Level, Text: e.Msg} }
	case view.Submit:
		return func() tea.Msg {
			var err error
			if e.Mode == view.ModeEdit {
				_, err = svc.Update(ctx, e.ID, e.Candidate)
			} else {
				_, err = svc.Create(ctx, e.Candidate)
			}
			return submittedMsg{seq: e.Seq, err: err}
		}
	case view.Remove:
		return func() tea.Msg {
			return deletedMsg{seq: e.Seq, err: svc.Delete(ctx, e.ID)}
		}
	case view.Refresh:
		var next view.Effect
		m.list, next = m.list.Load()
		return m.run(next)
	}
	return nil
}

func (m *Model) syncTable() {
	rows := make([]table.Row, 0, len(m.list.Companies))
	for _, c := range m.list.Companies {
		rows = append(rows, table.Row{c.Name, c.Industry, c.Location, c.Email, num(c.EmployeeCount), num(c.FoundedYear)})
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

// syncInputs copies the form values into the inputs and focuses the first.
func (m *Model) syncInputs() tea.Cmd {
	for i, f := range m.fields {
		m.inputs[i].SetValue(m.form.Values[f])
	}
	return m.focusField(0)
}

func (m *Model) focusField(i int) tea.Cmd {
	n := len(m.inputs)
	m.focus = (i%n + n) % n
	for j := range m.inputs {
		m.inputs[j].Blur()
	}
	return m.inputs[m.focus].Focus()
}

func (m Model) selected() (models.Company, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.list.Companies) {
		return models.Company{}, false
	}
	return m.list.Companies[i], true
}

func num(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func (m Model) View() string {
	var b strings.Builder

	title := "Companies"
	if n := len(m.list.Companies); n > 0 {
		title = fmt.Sprintf("Companies (%d)", n)
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(m.filterLine()))
	b.WriteString("\n\n")

	switch {
	case m.form.Phase != view.FormClosed:
		b.WriteString(m.formView())
	case m.del.Phase != view.DeleteClosed:
		b.WriteString(m.deleteView())
	default:
		b.WriteString(m.listView())
	}

	b.WriteString("\n")
	if m.toast.text != "" {
		style := m.styles.Info
		if m.toast.level == view.LevelError {
			style = m.styles.Error
		}
		b.WriteString(style.Render(m.toast.text))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(m.helpLine()))
	return b.String()
}

func (m Model) filterLine() string {
	orNone := func(s string) string {
		if s == "" {
			return "All"
		}
		return s
	}
	f := m.list.Filters
	return fmt.Sprintf("%s: %s | %s: %s | Sort: %s %s",
		view.Label("industry"), orNone(f.Industry),
		view.Label("location"), orNone(f.Location),
		view.Label(f.SortBy), f.SortOrder)
}

func (m Model) listView() string {
	switch {
	case m.list.Loading:
		return "Loading companies..."
	case m.list.Err != "":
		return m.styles.Error.Render(m.list.Err) + "\n" + m.styles.Muted.Render("Press r to retry.")
	case len(m.list.Companies) == 0:
		if m.list.Filtered() {
			return "No companies match your search or filters."
		}
		return "No companies yet. Press a to add one."
	}
	return m.table.View() + "\n" + m.styles.Muted.Render(fmt.Sprintf("Page %d of %d", m.list.Page, m.list.TotalPages))
}

func (m Model) formView() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.form.Mode.String()))
	b.WriteString("\n")
	for i, f := range m.fields {
		label := m.styles.Label.Render(view.Label(f))
		if i == m.focus {
			label = m.styles.Selected.Inherit(m.styles.Label).Render(view.Label(f))
		}
		b.WriteString(label + " " + m.inputs[i].View() + "\n")
		if msg, ok := m.form.Errors[f]; ok {
			b.WriteString(m.styles.Error.Render("  "+msg) + "\n")
		}
	}
	if m.form.Phase == view.FormSubmitting {
		b.WriteString("\nSaving...")
	}
	return m.styles.Dialog.Render(b.String())
}

func (m Model) deleteView() string {
	text := fmt.Sprintf("Delete %q? This cannot be undone.\n\n(y) delete  (n) cancel", m.del.Target.Name)
	if m.del.Phase == view.DeleteRunning {
		text = "Deleting..."
	}
	return m.styles.Dialog.Render(text)
}

func (m Model) helpLine() string {
	switch {
	case m.form.Phase != view.FormClosed:
		return "tab/shift+tab move • ctrl+o next option • ctrl+s save • esc cancel"
	case m.del.Phase != view.DeleteClosed:
		return "y confirm • n cancel"
	case m.searching:
		return "type to search • enter/esc done"
	}
	return "/ search • i industry • l location • s sort • o order • ←/→ page • a add • e edit • d delete • r reload • q quit"
}
