package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gartstein/directory/internal/client/view"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

type fakeService struct {
	mu      sync.Mutex
	rows    []models.Company
	lists   []query.Params
	created []schema.Candidate
	deleted []string
}

func (f *fakeService) List(_ context.Context, p query.Params) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, p)
	return &models.Page{Companies: f.rows, Total: int64(len(f.rows)), Page: 1, TotalPages: 1}, nil
}

func (f *fakeService) Create(_ context.Context, in schema.Candidate) (*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return &models.Company{ID: "new"}, nil
}

func (f *fakeService) Update(_ context.Context, id string, _ schema.Candidate) (*models.Company, error) {
	return &models.Company{ID: id}, nil
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func loaded(t *testing.T, svc *fakeService) Model {
	t.Helper()
	m := New(context.Background(), svc)
	require.NotNil(t, m.initCmd)
	m, _ = update(t, m, m.initCmd())
	return m
}

func TestModel_InitialLoad(t *testing.T) {
	svc := &fakeService{rows: []models.Company{{ID: "1", Name: "Acme"}, {ID: "2", Name: "Globex"}}}
	m := loaded(t, svc)

	require.Len(t, svc.lists, 1)
	assert.Equal(t, "9", svc.lists[0].Limit)
	assert.Len(t, m.table.Rows(), 2)
	assert.Contains(t, m.View(), "Companies (2)")
	assert.Contains(t, m.View(), "Acme")
}

func TestModel_FilterKeyRefetchesFirstPage(t *testing.T) {
	svc := &fakeService{}
	m := loaded(t, svc)

	m, cmd := update(t, m, key("i"))
	require.NotNil(t, cmd)
	_, _ = update(t, m, cmd())

	require.Len(t, svc.lists, 2)
	assert.Equal(t, "IT", svc.lists[1].Industry)
	assert.Equal(t, "1", svc.lists[1].Page)
}

func TestModel_FormValidationStaysOpen(t *testing.T) {
	m := loaded(t, &fakeService{})

	m, _ = update(t, m, key("a"))
	require.Equal(t, view.FormOpen, m.form.Phase)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	tm, ok := cmd().(ToastMsg)
	require.True(t, ok)
	assert.Equal(t, "Company name is required", tm.Text)
	assert.Equal(t, view.FormOpen, m.form.Phase)
	assert.Contains(t, m.View(), "Address is required")
}

func TestModel_FormSubmitCreates(t *testing.T) {
	svc := &fakeService{}
	m := loaded(t, svc)
	m, _ = update(t, m, key("a"))

	for field, v := range map[string]string{
		"name":     "Acme",
		"address":  "1 Main St",
		"industry": "IT",
		"email":    "acme@gmail.com",
		"location": "Mumbai",
	} {
		m.form = m.form.Edit(field, v)
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, view.FormSubmitting, m.form.Phase)
	m, cmd = update(t, m, cmd())
	require.Len(t, svc.created, 1)
	assert.Equal(t, "Acme", svc.created[0]["name"])
	assert.Equal(t, view.FormClosed, m.form.Phase)

	// Success refreshes the list.
	require.NotNil(t, cmd)
	_, _ = update(t, m, cmd())
	assert.Len(t, svc.lists, 2)
}

func TestModel_DeleteConfirm(t *testing.T) {
	svc := &fakeService{rows: []models.Company{{ID: "1", Name: "Acme"}}}
	m := loaded(t, svc)

	m, _ = update(t, m, key("d"))
	require.Equal(t, view.DeleteConfirm, m.del.Phase)
	assert.Contains(t, m.View(), `Delete "Acme"?`)

	m, cmd := update(t, m, key("y"))
	m, cmd = update(t, m, cmd())
	assert.Equal(t, []string{"1"}, svc.deleted)
	assert.Equal(t, view.DeleteClosed, m.del.Phase)
	require.NotNil(t, cmd)
}

func TestModel_ToastClears(t *testing.T) {
	m := loaded(t, &fakeService{})

	m, _ = update(t, m, ToastMsg{Level: view.LevelInfo, Text: "Company successfully created!"})
	assert.Contains(t, m.View(), "Company successfully created!")

	m, _ = update(t, m, clearToastMsg{id: m.toast.id})
	assert.False(t, strings.Contains(m.View(), "Company successfully created!"))
}
