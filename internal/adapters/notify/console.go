package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// Console implementa ports.EventSink: imprime cada observación en una
// línea y acumula la sesión para un resumen tabular opcional.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	events []domain.Event
}

// NewConsole crea un sink que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un sink para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Emit imprime el evento y lo guarda para el resumen.
func (c *Console) Emit(_ context.Context, ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)

	line := fmt.Sprintf("[%s] %s", ev.At.Format("15:04:05"), ev.Type)
	if ev.Slug != "" {
		line += " market=" + ev.Slug
	}
	if ev.Participant != "" {
		line += " participant=" + string(ev.Participant)
	}
	switch ev.Type {
	case domain.EventStaked:
		side := "no"
		if ev.Yes {
			side = "yes"
		}
		line += fmt.Sprintf(" side=%s amount=%d", side, ev.Amount)
	case domain.EventResolved:
		outcome := "no"
		if ev.OutcomeYes {
			outcome = "yes"
		}
		line += " outcome=" + outcome
	case domain.EventClaimed, domain.EventRefunded, domain.EventAdminSweep:
		line += fmt.Sprintf(" amount=%d", ev.Amount)
	case domain.EventDeadlineSet:
		if ev.Deadline.IsZero() {
			line += " deadline=none"
		} else {
			line += " deadline=" + ev.Deadline.Format("2006-01-02 15:04:05")
		}
	}

	_, err := fmt.Fprintln(c.out, line)
	return err
}

// Summary imprime la tabla de eventos de la sesión.
func (c *Console) Summary() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		fmt.Fprintln(c.out, "no events this session")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Event", "Market", "Participant", "Amount")
	for _, ev := range c.events {
		amount := ""
		if ev.Amount > 0 {
			amount = fmt.Sprintf("%d", ev.Amount)
		}
		table.Append(
			ev.At.Format("15:04:05"),
			string(ev.Type),
			ev.Slug,
			string(ev.Participant),
			amount,
		)
	}
	table.Render()
}
