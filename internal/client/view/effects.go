// Package view holds the client's screen state as immutable values. Every
// user action or network completion goes through a reducer that returns a
// new state plus at most one Effect for the shell to run. Reducers never
// perform I/O.
package view

import (
	"time"

	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

// Effect is work requested by a reducer.
type Effect interface {
	effect()
}

// Fetch loads a page of companies. Its completion must be fed back with
// the same Seq.
type Fetch struct {
	Seq    uint64
	Params query.Params
}

// Debounce asks for SearchSettled(Token) after Delay.
type Debounce struct {
	Token uint64
	Delay time.Duration
}

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notify shows a transient message.
type Notify struct {
	Level Level
	Msg   string
}

// Submit sends a validated form. Candidate carries typed values only.
type Submit struct {
	Seq       uint64
	Mode      FormMode
	ID        string
	Candidate schema.Candidate
}

// Remove deletes a company.
type Remove struct {
	Seq uint64
	ID  string
}

// Refresh reloads the list after a successful write.
type Refresh struct{}

func (Fetch) effect()    {}
func (Debounce) effect() {}
func (Notify) effect()   {}
func (Submit) effect()   {}
func (Remove) effect()   {}
func (Refresh) effect()  {}
