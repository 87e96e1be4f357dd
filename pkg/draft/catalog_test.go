package draft

import (
	"testing"
)

func TestCatalog_ListOrdering(t *testing.T) {
	c := NewCatalog(NewMemoryKV(0), "", "", discardLogger())

	entries := []IndexEntry{
		{Folio: "A", ClientName: "ACME", SavedAt: "2024-01-02T09:00:00Z"},
		{Folio: "B", ClientName: "Globex", SavedAt: "2024-01-03T09:00:00Z"},
		{Folio: "C", ClientName: "Initech"},
		{Folio: "D", ClientName: "Umbrella", SavedAt: "2024-01-01T09:00:00Z"},
		{Folio: "E", ClientName: "Hooli", SavedAt: "2024-01-02T09:00:00Z"},
	}
	for _, e := range entries {
		if err := c.Update(e); err != nil {
			t.Fatalf("Update(%s) error = %v", e.Folio, err)
		}
	}

	got := c.List()
	want := []string{"B", "A", "E", "D", "C"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d entries, want %d", len(got), len(want))
	}
	for i, f := range want {
		if got[i].Folio != f {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].Folio, f)
		}
	}
	if got[0].ClientName != "Globex" {
		t.Errorf("Expected entry fields preserved, got %+v", got[0])
	}
}

func TestCatalog_UpdateReplaces(t *testing.T) {
	c := NewCatalog(NewMemoryKV(0), "", "", discardLogger())
	c.Update(IndexEntry{Folio: "A", ClientName: "old", SavedAt: "1"})
	c.Update(IndexEntry{Folio: "A", ClientName: "new", SavedAt: "2"})

	got := c.List()
	if len(got) != 1 || got[0].ClientName != "new" {
		t.Errorf("List() = %+v", got)
	}
}

func TestCatalog_Remove(t *testing.T) {
	kv := NewMemoryKV(0)
	c := NewCatalog(kv, "", "", discardLogger())
	kv.Set(DefaultDraftPrefix+"A", `{"cliente":"ACME"}`)
	c.Update(IndexEntry{Folio: "A", ClientName: "ACME"})
	c.Update(IndexEntry{Folio: "B", ClientName: "Globex"})

	c.Remove("A")
	c.Remove("A")
	c.Remove("never-existed")

	if _, ok, _ := kv.Get(DefaultDraftPrefix + "A"); ok {
		t.Error("Expected draft removed")
	}
	got := c.List()
	if len(got) != 1 || got[0].Folio != "B" {
		t.Errorf("List() = %+v", got)
	}
}

func TestCatalog_MalformedIndexIsEmpty(t *testing.T) {
	kv := NewMemoryKV(0)
	kv.Set(DefaultIndexKey, "not json")
	c := NewCatalog(kv, "", "", discardLogger())

	if got := c.List(); len(got) != 0 {
		t.Errorf("Expected empty list, got %+v", got)
	}
	if err := c.Update(IndexEntry{Folio: "A"}); err != nil {
		t.Errorf("Update() error = %v", err)
	}
	if got := c.List(); len(got) != 1 {
		t.Errorf("Expected index rebuilt, got %+v", got)
	}
}

func TestCatalog_Reconcile(t *testing.T) {
	kv := NewMemoryKV(0)
	c := NewCatalog(kv, "", "", discardLogger())

	// Draft written, crash before the index update.
	kv.Set(DefaultDraftPrefix+"X", `{"cliente":"ACME","fecha":"2024-05-01","__saved_at":"2024-05-01T12:00:00Z"}`)
	// Index entry whose draft is gone.
	c.Update(IndexEntry{Folio: "Y", ClientName: "Globex"})
	// Consistent pair.
	kv.Set(DefaultDraftPrefix+"Z", `{"cliente":"Initech"}`)
	c.Update(IndexEntry{Folio: "Z", ClientName: "Initech"})

	added, dropped, err := c.Reconcile("cliente", "fecha")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if added != 1 || dropped != 1 {
		t.Errorf("Reconcile() = added %d dropped %d, want 1 and 1", added, dropped)
	}

	got := c.List()
	if len(got) != 2 {
		t.Fatalf("List() = %+v", got)
	}
	if got[0].Folio != "X" || got[0].ClientName != "ACME" || got[0].Date != "2024-05-01" {
		t.Errorf("Expected recovered entry first, got %+v", got[0])
	}
	if got[1].Folio != "Z" {
		t.Errorf("Expected Z kept, got %+v", got[1])
	}
}
