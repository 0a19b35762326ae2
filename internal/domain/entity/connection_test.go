package entity_test

import (
	"net"
	"testing"

	"ikedadada/go-ptor/internal/domain/entity"
	"ikedadada/go-ptor/internal/domain/value_object"
)

func newTestConnection(t *testing.T) *entity.Connection {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return entity.NewConnection(server)
}

func TestConnection_BindNeverHandsOutZero(t *testing.T) {
	c := newTestConnection(t)
	for i := 0; i < 50; i++ {
		id, err := c.Bind(func(*value_object.Cell) {})
		if err != nil {
			t.Fatalf("Bind: %v", err)
		}
		if id.IsZero() {
			t.Fatal("Bind handed out the reserved zero id")
		}
	}
}

func TestConnection_BindThenReleaseLeavesSpaceUnchanged(t *testing.T) {
	c := newTestConnection(t)
	id, err := c.Bind(func(*value_object.Cell) {})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if len(c.Bound()) != 1 {
		t.Fatalf("expected 1 bound id, got %d", len(c.Bound()))
	}
	c.Release(id)
	if len(c.Bound()) != 0 {
		t.Fatalf("expected 0 bound ids after release, got %d", len(c.Bound()))
	}
}

func TestConnection_DispatchRoutesToBoundHandler(t *testing.T) {
	c := newTestConnection(t)
	received := make(chan *value_object.Cell, 1)
	id, err := c.Bind(func(cell *value_object.Cell) { received <- cell })
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	cell := &value_object.Cell{CircuitID: id, Cmd: value_object.CmdData}
	if !c.Dispatch(id, cell) {
		t.Fatal("expected Dispatch to find the bound handler")
	}
	select {
	case got := <-received:
		if got != cell {
			t.Fatal("handler received a different cell than dispatched")
		}
	default:
		t.Fatal("handler was not invoked")
	}
}

func TestConnection_DispatchUnboundIDReportsFalse(t *testing.T) {
	c := newTestConnection(t)
	unbound := value_object.CircuitIDFromUint16(1)
	if c.Dispatch(unbound, &value_object.Cell{}) {
		t.Fatal("expected Dispatch to report false for an unbound id")
	}
}
