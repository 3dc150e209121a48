package sink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

type counting struct {
	n        int
	closeErr error
	closed   bool
}

func (c *counting) TriggerHandover(context.Context, handover.ConnID, handover.CellID) { c.n++ }

func (c *counting) Close() error {
	c.closed = true
	return c.closeErr
}

func TestFanout_DeliversToAll(t *testing.T) {
	a, b := &counting{}, &counting{}
	f := Fanout{a, b}
	f.TriggerHandover(context.Background(), 1, 2)
	f.TriggerHandover(context.Background(), 1, 3)
	if a.n != 2 || b.n != 2 {
		t.Fatalf("a=%d b=%d want 2/2", a.n, b.n)
	}
}

func TestFanout_CloseReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	a, b := &counting{closeErr: boom}, &counting{closeErr: errors.New("later")}
	if err := (Fanout{a, NewLog(nil), b}).Close(); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("not every sink closed")
	}
}

func TestLog_WritesTrigger(t *testing.T) {
	var buf bytes.Buffer
	s := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))
	s.TriggerHandover(context.Background(), 17, 7)
	out := buf.String()
	if !strings.Contains(out, "handover triggered") || !strings.Contains(out, "conn=17") || !strings.Contains(out, "target=7") {
		t.Fatalf("log=%q", out)
	}
}
