package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	entries := []Generation{
		{SessionID: "s1", Kind: KindSlot, Key: "1", ModelID: "a", Status: StatusSuccess, CreatedAt: base},
		{SessionID: "s1", Kind: KindSlot, Key: "2", ModelID: "b", Status: StatusError, CreatedAt: base.Add(time.Second)},
		{SessionID: "s1", Kind: KindRemix, Key: "0", ModelID: "a", Status: StatusSuccess, CreatedAt: base.Add(2 * time.Second)},
		{SessionID: "s2", Kind: KindSlot, Key: "1", ModelID: "a", Status: StatusSuccess, CreatedAt: base.Add(3 * time.Second)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name     string
		opts     ListOptions
		wantKeys []string
	}{
		{"all newest first", ListOptions{}, []string{"1", "0", "2", "1"}},
		{"by session", ListOptions{SessionID: "s1"}, []string{"0", "2", "1"}},
		{"by kind", ListOptions{SessionID: "s1", Kind: KindSlot}, []string{"2", "1"}},
		{"limited", ListOptions{Limit: 1}, []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.opts)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.wantKeys) {
				t.Fatalf("List() returned %d entries, want %d", len(got), len(tt.wantKeys))
			}
			for i, g := range got {
				if g.Key != tt.wantKeys[i] {
					t.Errorf("List()[%d].Key = %q, want %q", i, g.Key, tt.wantKeys[i])
				}
			}
		})
	}
}

func TestStore_RecordSetsCreatedAt(t *testing.T) {
	s := openTestStore(t)
	if err := s.Record(context.Background(), Generation{Kind: KindConversation, Key: "conv_1"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CreatedAt.IsZero() {
		t.Errorf("List() = %+v, want one entry with CreatedAt set", got)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Record(context.Background(), Generation{Kind: KindSlot, Key: "1"}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() second time error = %v", err)
	}
	defer reopened.Close()
	got, _ := reopened.List(context.Background(), ListOptions{})
	if len(got) != 1 {
		t.Errorf("reopened journal has %d entries, want 1", len(got))
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	if err := r.Record(context.Background(), Generation{}); err != nil {
		t.Errorf("Nop.Record() error = %v", err)
	}
}
