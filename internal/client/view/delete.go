package view

import (
	"github.com/gartstein/directory/internal/client/api"
	"github.com/gartstein/directory/internal/company/models"
)

type DeletePhase int

const (
	DeleteClosed DeletePhase = iota
	DeleteConfirm
	DeleteRunning
)

// DeleteState is the delete confirmation dialog.
type DeleteState struct {
	Phase  DeletePhase
	Target models.Company

	seq uint64
}

// Open asks for confirmation to delete c.
func (s DeleteState) Open(c models.Company) DeleteState {
	s.Phase = DeleteConfirm
	s.Target = c
	return s
}

func (s DeleteState) Cancel() DeleteState {
	s.Phase = DeleteClosed
	s.seq++
	return s
}

func (s DeleteState) Confirm() (DeleteState, Effect) {
	if s.Phase != DeleteConfirm {
		return s, nil
	}
	s.Phase = DeleteRunning
	s.seq++
	return s, Remove{Seq: s.seq, ID: s.Target.ID}
}

// Deleted applies the outcome of deletion seq. On failure the dialog stays
// open.
func (s DeleteState) Deleted(seq uint64, err error) (DeleteState, Effect) {
	if seq != s.seq || s.Phase != DeleteRunning {
		return s, nil
	}
	if err == nil {
		s.Phase = DeleteClosed
		return s, Refresh{}
	}
	s.Phase = DeleteConfirm
	if api.IsPresented(err) {
		return s, nil
	}
	return s, Notify{Level: LevelError, Msg: err.Error()}
}
