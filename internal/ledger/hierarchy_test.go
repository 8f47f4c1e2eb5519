package ledger

import (
	"errors"
	"testing"

	"github.com/dvloznov/statement-ledger/internal/store"
)

func TestHierarchy_AddEdge(t *testing.T) {
	tests := []struct {
		name    string
		edges   [][2]string
		child   string
		parent  string
		wantErr error
	}{
		{name: "new parent becomes root", child: "Coffee", parent: "Food"},
		{name: "self parent", child: "Food", parent: "Food", wantErr: ErrSelfParent},
		{name: "blank child", child: " ", parent: "Food", wantErr: ErrEmptyCategory},
		{name: "same edge again", edges: [][2]string{{"Coffee", "Food"}}, child: "Coffee", parent: "Food"},
		{name: "second parent", edges: [][2]string{{"Coffee", "Food"}}, child: "Coffee", parent: "Drinks", wantErr: ErrHasParent},
		{name: "direct cycle", edges: [][2]string{{"B", "A"}}, child: "A", parent: "B", wantErr: ErrCycle},
		{name: "long cycle", edges: [][2]string{{"B", "A"}, {"C", "B"}, {"D", "C"}}, child: "A", parent: "D", wantErr: ErrCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := NewHierarchy(nil)
			for _, e := range tt.edges {
				if err := h.AddEdge(e[0], e[1]); err != nil {
					t.Fatalf("setup AddEdge(%s, %s): %v", e[0], e[1], err)
				}
			}
			err := h.AddEdge(tt.child, tt.parent)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("AddEdge() error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddEdge() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHierarchy_LevelInvariant(t *testing.T) {
	h, _ := NewHierarchy(nil)
	edges := [][2]string{
		{"Coffee", "Dining"},
		{"Dining", "Food"},
		{"Groceries", "Food"},
		{"Food", "Living"},
		{"Rent", "Living"},
		{"Espresso", "Coffee"},
	}
	for _, e := range edges {
		if err := h.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", e[0], e[1], err)
		}
	}

	for _, e := range h.Edges() {
		if e.Parent == "" {
			if e.Level != 0 {
				t.Errorf("root %s has level %d", e.Category, e.Level)
			}
			continue
		}
		parentLevel, ok := h.Level(e.Parent)
		if !ok {
			t.Fatalf("parent %s of %s is unknown", e.Parent, e.Category)
		}
		if e.Level != parentLevel+1 {
			t.Errorf("level(%s) = %d, level(%s) = %d", e.Category, e.Level, e.Parent, parentLevel)
		}
	}

	if got, _ := h.Level("Espresso"); got != 4 {
		t.Errorf("Espresso level = %d, want 4", got)
	}
}

func TestHierarchy_PathAndDescendants(t *testing.T) {
	h, _ := NewHierarchy(nil)
	h.AddEdge("Dining", "Food")
	h.AddEdge("Groceries", "Food")
	h.AddEdge("Coffee", "Dining")

	path := h.Path("Coffee")
	want := []string{"Food", "Dining", "Coffee"}
	if len(path) != len(want) {
		t.Fatalf("Path() = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("Path()[%d] = %s, want %s", i, path[i], want[i])
		}
	}

	if got := h.Path("Unknown"); len(got) != 1 || got[0] != "Unknown" {
		t.Errorf("Path(unknown) = %v", got)
	}

	desc := h.Descendants("Food")
	wantDesc := []string{"Dining", "Groceries", "Coffee"}
	if len(desc) != len(wantDesc) {
		t.Fatalf("Descendants() = %v, want %v", desc, wantDesc)
	}
	for i := range wantDesc {
		if desc[i] != wantDesc[i] {
			t.Errorf("Descendants()[%d] = %s, want %s", i, desc[i], wantDesc[i])
		}
	}
	if got := h.Descendants("Coffee"); len(got) != 0 {
		t.Errorf("Descendants(leaf) = %v", got)
	}
}

func TestNewHierarchy_RecomputesLevels(t *testing.T) {
	h, err := NewHierarchy([]store.CategoryEdge{
		{Category: "Coffee", Parent: "Dining", Level: 7},
		{Category: "Dining", Parent: "Food", Level: 1},
		{Category: "Food", Level: 0},
	})
	if err != nil {
		t.Fatalf("NewHierarchy() error: %v", err)
	}
	if got, _ := h.Level("Coffee"); got != 2 {
		t.Errorf("Coffee level = %d, want 2", got)
	}
}

func TestNewHierarchy_RejectsCycle(t *testing.T) {
	_, err := NewHierarchy([]store.CategoryEdge{
		{Category: "A", Parent: "B", Level: 1},
		{Category: "B", Parent: "A", Level: 1},
	})
	if !errors.Is(err, ErrCycle) {
		t.Errorf("NewHierarchy() error = %v, want ErrCycle", err)
	}
}
