// Package mongo stores submissions in a MongoDB collection, one document per
// applicant with createdAt/updatedAt alongside the form fields.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/thepathwise/intake/internal/schema"
	"github.com/thepathwise/intake/pkg/models"
	"github.com/thepathwise/intake/pkg/repository"
)

const (
	DefaultDatabase      = "intake"
	SubmissionCollection = "forms"
	JobRunCollection     = "job_runs"
	counterCollection    = "counters"
	operationTimeout     = 10 * time.Second

	keyID        = "_id"
	keyCreatedAt = "createdAt"
	keyUpdatedAt = "updatedAt"
)

var ErrNotFound = errors.New("submission not found")

// Repo implements repository.Store on MongoDB.
type Repo struct {
	client   *mongo.Client
	forms    *mongo.Collection
	runs     *mongo.Collection
	counters *mongo.Collection
	logger   *slog.Logger
	now      func() time.Time
}

var _ repository.Store = (*Repo)(nil)

// Open connects to uri and pings the primary. The database is taken from the
// URI path and defaults to DefaultDatabase.
func Open(ctx context.Context, uri string, logger *slog.Logger) (*Repo, error) {
	uri = strings.TrimSpace(uri)
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("parse mongo uri: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = DefaultDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client, client.Database(dbName), logger), nil
}

// New wraps an existing client and database.
func New(client *mongo.Client, db *mongo.Database, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{
		client:   client,
		forms:    db.Collection(SubmissionCollection),
		runs:     db.Collection(JobRunCollection),
		counters: db.Collection(counterCollection),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repo) CreateSubmission(ctx context.Context, s *models.Submission) error {
	if s == nil {
		return fmt.Errorf("submission is nil")
	}
	fields := schema.Fields(*s)
	if err := schema.CheckRecord(ctx, fields); err != nil {
		return err
	}

	// mongo stores milliseconds
	ts := r.now().Truncate(time.Millisecond)
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	doc[keyCreatedAt] = ts
	doc[keyUpdatedAt] = ts

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	res, err := r.forms.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	s.ID = idString(res.InsertedID)
	s.CreatedAt, s.UpdatedAt = ts, ts
	return nil
}

func (r *Repo) ListDocuments(ctx context.Context) ([]models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	cur, err := r.forms.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: keyCreatedAt, Value: -1}, {Key: keyID, Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			r.logger.Warn("undecodable submission document", "err", err)
			out = append(out, models.Document{ID: idString(cur.Current.Lookup(keyID))})
			continue
		}
		out = append(out, toDocument(raw))
	}
	return out, cur.Err()
}

func (r *Repo) PatchDocument(ctx context.Context, id string, p models.Patch) error {
	update := bson.D{{Key: "$currentDate", Value: bson.M{keyUpdatedAt: true}}}
	if len(p.Set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: bson.M(p.Set)})
	}
	if len(p.Unset) > 0 {
		unset := bson.M{}
		for _, k := range p.Unset {
			unset[k] = ""
		}
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	res, err := r.forms.UpdateOne(ctx, bson.M{keyID: idFilter(id)}, update)
	if err != nil {
		return fmt.Errorf("patch submission %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type jobRunDoc struct {
	ID         int64     `bson:"_id"`
	Name       string    `bson:"name"`
	StartedAt  time.Time `bson:"startedAt"`
	FinishedAt time.Time `bson:"finishedAt"`
	Status     string    `bson:"status"`
	Summary    string    `bson:"summary"`
	Error      string    `bson:"error,omitempty"`
}

// RecordRun stores run with an id drawn from a per-collection counter.
func (r *Repo) RecordRun(ctx context.Context, run *models.JobRun) (int64, error) {
	if run == nil {
		return 0, fmt.Errorf("job run is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{keyID: JobRunCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next job run id: %w", err)
	}

	summary := string(run.Summary)
	if summary == "" {
		summary = "{}"
	}
	doc := jobRunDoc{
		ID:         counter.Seq,
		Name:       run.Name,
		StartedAt:  run.StartedAt.UTC(),
		FinishedAt: run.FinishedAt.UTC(),
		Status:     run.Status,
		Summary:    summary,
		Error:      run.Error,
	}
	if _, err := r.runs.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("record job run: %w", err)
	}
	run.ID = doc.ID
	return doc.ID, nil
}

func (r *Repo) ListRuns(ctx context.Context, name string, limit int) ([]models.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{}
	if name != "" {
		filter["name"] = name
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}, {Key: keyID, Value: -1}}).SetLimit(int64(limit))
	cur, err := r.runs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []jobRunDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.JobRun, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.JobRun{
			ID:         d.ID,
			Name:       d.Name,
			StartedAt:  d.StartedAt.UTC(),
			FinishedAt: d.FinishedAt.UTC(),
			Status:     d.Status,
			Summary:    []byte(d.Summary),
			Error:      d.Error,
		})
	}
	return out, nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *Repo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// toDocument splits a raw collection entry into id, timestamps and form
// fields. Nested BSON values are passed through untouched.
func toDocument(raw bson.M) models.Document {
	d := models.Document{ID: idString(raw[keyID]), Fields: map[string]any{}}
	d.CreatedAt = timeValue(raw[keyCreatedAt])
	d.UpdatedAt = timeValue(raw[keyUpdatedAt])
	for k, v := range raw {
		switch k {
		case keyID, keyCreatedAt, keyUpdatedAt, "__v":
			continue
		}
		d.Fields[k] = v
	}
	return d
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case bson.RawValue:
		if oid, ok := id.ObjectIDOK(); ok {
			return oid.Hex()
		}
		if s, ok := id.StringValueOK(); ok {
			return s
		}
		return ""
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func idFilter(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func timeValue(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	default:
		return time.Time{}
	}
}
