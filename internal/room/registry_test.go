package room

import (
	"testing"
)

type countingClient struct {
	id string
}

func (c *countingClient) ID() string {
	return c.id
}

func (c *countingClient) Send(payload []byte) error {
	return nil
}

func TestRegistryCountsAttachedClients(t *testing.T) {
	registry := NewRegistry()
	if registry.Count() != 0 {
		t.Fatalf("expected empty registry")
	}

	registry.Add(&countingClient{id: "conn-1"})
	registry.Add(&countingClient{id: "conn-2"})
	if registry.Count() != 2 {
		t.Fatalf("expected 2 clients, got %d", registry.Count())
	}

	registry.Remove("conn-1")
	if registry.Count() != 1 {
		t.Fatalf("expected 1 client after removal, got %d", registry.Count())
	}

	registry.Remove("conn-missing")
	if registry.Count() != 1 {
		t.Fatalf("expected removal of unknown id to be a no-op")
	}
}

func TestRegistryAllExceptExcludesOnlyTheNamedClient(t *testing.T) {
	registry := NewRegistry()
	registry.Add(&countingClient{id: "conn-1"})
	registry.Add(&countingClient{id: "conn-2"})
	registry.Add(&countingClient{id: "conn-3"})

	others := registry.AllExcept("conn-2")
	if len(others) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(others))
	}
	for _, client := range others {
		if client.ID() == "conn-2" {
			t.Fatalf("expected conn-2 to be excluded")
		}
	}
}

func TestRegistryAddReplacesClientWithSameID(t *testing.T) {
	registry := NewRegistry()
	registry.Add(&countingClient{id: "conn-1"})
	registry.Add(&countingClient{id: "conn-1"})
	if registry.Count() != 1 {
		t.Fatalf("expected duplicate id to replace, got %d clients", registry.Count())
	}
}
