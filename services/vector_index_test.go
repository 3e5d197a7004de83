package services

import (
	"context"
	"math"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("similarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReconcileAllRepairsEveryNote(t *testing.T) {
	index := &fakeIndex{}
	svc, _, _, _ := newTestNotesService(index)
	owner := primitive.NewObjectID()

	var noteIDs []primitive.ObjectID
	for _, name := range []string{"one.txt", "two.txt"} {
		note, _, err := svc.Ingest(context.Background(), owner, name,
			[]byte(strings.Repeat(name+" body ", 100)))
		if err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
		noteIDs = append(noteIDs, note.ID)
	}

	// Wipe the index entirely, then sweep
	index.mu.Lock()
	index.entries = nil
	index.mu.Unlock()

	if err := svc.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	for _, id := range noteIDs {
		ids, _ := index.Get(context.Background(), IndexFilter{"note_id": id}, 0)
		if len(ids) == 0 {
			t.Fatalf("sweep left note %s unindexed", id.Hex())
		}
	}
}
