package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/thepathwise/intake/pkg/models"
)

func TestToDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := bson.M{
		"_id":         oid,
		"createdAt":   primitive.NewDateTimeFromTime(created),
		"updatedAt":   primitive.NewDateTimeFromTime(created.Add(time.Hour)),
		"__v":         int32(0),
		"fullName":    "Grace",
		"phoneNumber": "+1",
	}
	d := toDocument(raw)
	if d.ID != oid.Hex() {
		t.Fatalf("expected hex id %s, got %s", oid.Hex(), d.ID)
	}
	if !d.CreatedAt.Equal(created) || !d.UpdatedAt.Equal(created.Add(time.Hour)) {
		t.Fatalf("unexpected timestamps %v %v", d.CreatedAt, d.UpdatedAt)
	}
	if len(d.Fields) != 2 || d.Fields["phoneNumber"] != "+1" {
		t.Fatalf("expected only form fields, got %v", d.Fields)
	}
}

func TestIDFilter(t *testing.T) {
	oid := primitive.NewObjectID()
	if got, ok := idFilter(oid.Hex()).(primitive.ObjectID); !ok || got != oid {
		t.Fatalf("expected ObjectID filter, got %#v", idFilter(oid.Hex()))
	}
	if got := idFilter("legacy-id"); got != "legacy-id" {
		t.Fatalf("expected string filter, got %#v", got)
	}
	if idString(nil) != "" || idString("abc") != "abc" {
		t.Fatalf("unexpected idString results")
	}
}

func integrationRepo(t *testing.T) *Repo {
	t.Helper()
	uri := strings.TrimSpace(os.Getenv("INTAKE_TEST_MONGO_URI"))
	if uri == "" {
		t.Skip("set INTAKE_TEST_MONGO_URI to run MongoDB integration tests")
	}
	ctx := context.Background()
	repo, err := Open(ctx, uri, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db := repo.client.Database(fmt.Sprintf("intake_it_%d", time.Now().UnixNano()))
	repo = New(repo.client, db, nil)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = repo.Close()
	})
	return repo
}

func TestMongoIntegrationBackfillShape(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	res, err := repo.forms.InsertOne(ctx, bson.M{
		"fullName":    "Grace",
		"phoneNumber": "+1",
		"location":    "NYC",
		"createdAt":   time.Now().Add(-time.Hour),
		"updatedAt":   time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	id := idString(res.InsertedID)

	p := models.Patch{Set: map[string]any{"phone": "+1"}, Unset: []string{"phoneNumber", "location"}}
	if err := repo.PatchDocument(ctx, id, p); err != nil {
		t.Fatalf("PatchDocument: %v", err)
	}
	docs, err := repo.ListDocuments(ctx)
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListDocuments: %v %+v", err, docs)
	}
	if docs[0].Fields["phone"] != "+1" {
		t.Fatalf("expected phone set, got %v", docs[0].Fields)
	}
	if _, ok := docs[0].Fields["location"]; ok {
		t.Fatalf("expected location removed")
	}
	if !docs[0].UpdatedAt.After(docs[0].CreatedAt) {
		t.Fatalf("expected updatedAt bumped")
	}
	if err := repo.PatchDocument(ctx, primitive.NewObjectID().Hex(), p); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.RecordRun(ctx, &models.JobRun{Name: "backfill", StartedAt: time.Now(), FinishedAt: time.Now(), Status: models.RunSucceeded}); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}
	runs, err := repo.ListRuns(ctx, "backfill", 10)
	if err != nil || len(runs) != 2 || runs[0].ID != 2 {
		t.Fatalf("ListRuns: %v %+v", err, runs)
	}
}
