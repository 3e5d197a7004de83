package services

import (
	"context"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"prepai-backend/models"
)

func TestSearchJoinsResults(t *testing.T) {
	index := &fakeIndex{entries: []models.ChunkEntry{
		{ChunkID: "a", Text: "first chunk"},
		{ChunkID: "b", Text: "second chunk"},
	}}
	svc := NewSearchService(index, 5)

	got := svc.Search(context.Background(), "anything", nil)
	if got != "first chunk second chunk" {
		t.Fatalf("search = %q", got)
	}
}

func TestSearchDropsEmptyEntries(t *testing.T) {
	index := &fakeIndex{entries: []models.ChunkEntry{
		{ChunkID: "a", Text: "usable"},
		{ChunkID: "b", Text: "   "},
		{ChunkID: "c", Text: ""},
		{ChunkID: "d", Text: "also usable"},
	}}
	svc := NewSearchService(index, 5)

	got := svc.Search(context.Background(), "anything", nil)
	if got != "usable also usable" {
		t.Fatalf("search = %q", got)
	}
}

func TestSearchDegradesToEmptyOnFailure(t *testing.T) {
	svc := NewSearchService(&fakeIndex{failAll: true}, 5)
	if got := svc.Search(context.Background(), "anything", nil); got != "" {
		t.Fatalf("degraded search = %q, want empty", got)
	}
}

func TestSearchEmptyIndexYieldsEmptyString(t *testing.T) {
	svc := NewSearchService(&fakeIndex{}, 5)
	if got := svc.Search(context.Background(), "anything", nil); got != "" {
		t.Fatalf("search over empty index = %q", got)
	}
}

func TestSearchHonorsMetadataFilter(t *testing.T) {
	mine := primitive.NewObjectID()
	other := primitive.NewObjectID()
	index := &fakeIndex{entries: []models.ChunkEntry{
		{ChunkID: "a", NoteID: mine, Text: "mine"},
		{ChunkID: "b", NoteID: other, Text: "leaked"},
	}}
	svc := NewSearchService(index, 5)

	got := svc.Search(context.Background(), "anything", IndexFilter{"note_id": mine})
	if got != "mine" {
		t.Fatalf("filtered search = %q", got)
	}
}

func TestSearchOwnerFilterIsolatesCorpora(t *testing.T) {
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	index := &fakeIndex{entries: []models.ChunkEntry{
		{ChunkID: "a1", OwnerID: alice, Text: "alice secret notes"},
		{ChunkID: "b1", OwnerID: bob, Text: "bob private resume"},
		{ChunkID: "a2", OwnerID: alice, Text: "alice study guide"},
	}}
	svc := NewSearchService(index, 5)

	got := svc.Search(context.Background(), "anything", IndexFilter{"owner_id": alice})
	if got != "alice secret notes alice study guide" {
		t.Fatalf("owner-scoped search = %q", got)
	}
	if strings.Contains(got, "bob") {
		t.Fatal("another owner's chunks leaked into the context")
	}

	got = svc.Search(context.Background(), "anything", IndexFilter{"owner_id": bob})
	if got != "bob private resume" {
		t.Fatalf("owner-scoped search = %q", got)
	}
}

func TestSearchRespectsTopK(t *testing.T) {
	index := &fakeIndex{entries: []models.ChunkEntry{
		{ChunkID: "a", Text: "one"},
		{ChunkID: "b", Text: "two"},
		{ChunkID: "c", Text: "three"},
	}}
	svc := NewSearchService(index, 2)

	got := svc.Search(context.Background(), "anything", nil)
	if got != "one two" {
		t.Fatalf("topK search = %q", got)
	}
}
