package storage

import (
	"testing"

	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/google/go-cmp/cmp"
)

func names(items []models.WorkItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.DogName)
	}
	return out
}

func TestItemStoreKeepsInsertionOrder(t *testing.T) {
	s := NewItemStore()
	s.Add(
		models.WorkItem{ID: "1", DogName: "Max"},
		models.WorkItem{ID: "2", DogName: "Buddy"},
		models.WorkItem{ID: "3", DogName: "Luna"},
	)
	if diff := cmp.Diff([]string{"Max", "Buddy", "Luna"}, names(s.List())); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	s.Add(models.WorkItem{ID: "2", DogName: "Buddy II"})
	if diff := cmp.Diff([]string{"Max", "Buddy II", "Luna"}, names(s.List())); diff != "" {
		t.Errorf("replace should keep position (-want +got):\n%s", diff)
	}
}

func TestItemStoreUpdate(t *testing.T) {
	s := NewItemStore()
	s.Add(models.WorkItem{ID: "1", DogName: "Max", Status: models.StatusPending})

	setStatus := func(st models.ItemStatus) Patch {
		return func(w models.WorkItem) models.WorkItem {
			w.Status = st
			return w
		}
	}

	got, ok := s.Update("1", setStatus(models.StatusGenerating), setStatus(models.StatusReady))
	if !ok {
		t.Fatal("Expected update to find the item")
	}
	if got.Status != models.StatusReady {
		t.Errorf("Expected status ready, got %s", got.Status)
	}
	if stored, _ := s.Get("1"); stored.Status != models.StatusReady {
		t.Errorf("Expected stored status ready, got %s", stored.Status)
	}

	if _, ok := s.Update("missing", setStatus(models.StatusReady)); ok {
		t.Error("Expected update of missing item to report false")
	}

	isPending := func(w models.WorkItem) bool { return w.Status == models.StatusPending }
	if _, ok := s.UpdateIf("1", isPending, setStatus(models.StatusFailed)); ok {
		t.Error("Expected UpdateIf to skip an item that fails the condition")
	}
}

func TestItemStoreSnapshotsAreCopies(t *testing.T) {
	s := NewItemStore()
	s.Add(models.WorkItem{ID: "1", DogName: "Max"})

	list := s.List()
	list[0].DogName = "Changed"

	if got, _ := s.Get("1"); got.DogName != "Max" {
		t.Errorf("Expected stored item to be unaffected, got %s", got.DogName)
	}
}

func TestItemStoreDelete(t *testing.T) {
	s := NewItemStore()
	s.Add(models.WorkItem{ID: "1", DogName: "Max"}, models.WorkItem{ID: "2", DogName: "Luna"})

	if !s.Delete("1") {
		t.Fatal("Expected delete to succeed")
	}
	if _, ok := s.Get("1"); ok {
		t.Error("Expected deleted item to be gone")
	}
	if s.Delete("1") {
		t.Error("Expected second delete to report false")
	}
	if diff := cmp.Diff([]string{"Luna"}, names(s.List())); diff != "" {
		t.Errorf("remaining items mismatch (-want +got):\n%s", diff)
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 item, got %d", s.Len())
	}
}

func TestSessionStore(t *testing.T) {
	s := NewSessionStore[string]()
	s.Set("a", "first")
	s.Set("b", "second")

	if got, ok := s.Get("a"); !ok || got != "first" {
		t.Errorf("Expected first, got %q (%v)", got, ok)
	}
	if len(s.GetAll()) != 2 {
		t.Errorf("Expected 2 sessions, got %d", len(s.GetAll()))
	}
	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("Expected session a to be deleted")
	}
}
