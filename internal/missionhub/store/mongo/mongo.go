// Package mongo stores mission duties and their events in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
)

const (
	missionCollection = "mission_duties"
	eventCollection   = "mission_events"
)

// Store is a MongoDB-backed Repository.
type Store struct {
	client   *mongo.Client
	missions *mongo.Collection
	events   *mongo.Collection
}

var (
	_ core.Repository        = (*Store)(nil)
	_ core.MissionRepository = (*missions)(nil)
	_ core.EventRepository   = (*events)(nil)
)

// Connect dials uri, verifies the connection and ensures the indexes.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := New(client, database)
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an already connected client.
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		missions: db.Collection(missionCollection),
		events:   db.Collection(eventCollection),
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.missions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "missionCode", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "vin", Value: 1}, {Key: "dispatched", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: create mission indexes: %w", err)
	}
	_, err = s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "missionCode", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: create event indexes: %w", err)
	}
	return nil
}

func (s *Store) Missions() core.MissionRepository { return (*missions)(s) }
func (s *Store) Events() core.EventRepository     { return (*events)(s) }

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type missions Store

func (r *missions) Create(ctx context.Context, m *model.MissionDuty) error {
	_, err := r.missions.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return core.ErrAlreadyExists
	}
	return err
}

func (r *missions) FindByCode(ctx context.Context, code string) (*model.MissionDuty, error) {
	return r.findOne(ctx, bson.M{"missionCode": code})
}

func (r *missions) FindByID(ctx context.Context, id string) (*model.MissionDuty, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *missions) findOne(ctx context.Context, filter bson.M) (*model.MissionDuty, error) {
	var m model.MissionDuty
	err := r.missions.FindOne(ctx, filter).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *missions) FindOpenForVIN(ctx context.Context, vin string) ([]*model.MissionDuty, error) {
	return r.find(ctx, bson.M{
		"vin":        vin,
		"dispatched": true,
		"status":     bson.M{"$nin": bson.A{model.StatusCompleted, model.StatusFailed, model.StatusCancelled}},
	})
}

func (r *missions) List(ctx context.Context, filter model.MissionFilter) ([]*model.MissionDuty, error) {
	q := bson.M{}
	if filter.VIN != "" {
		q["vin"] = filter.VIN
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	return r.find(ctx, q)
}

func (r *missions) find(ctx context.Context, filter bson.M) ([]*model.MissionDuty, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.missions.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*model.MissionDuty{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transition updates the mission and inserts the event in one session
// transaction. Transactions need a replica set or a sharded cluster.
func (r *missions) Transition(ctx context.Context, t *model.Transition) error {
	fields := bson.M{"status": t.Status, "updatedAt": t.At}
	if t.Dispatched {
		fields["dispatched"] = true
		fields["dispatchedAt"] = t.At
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if err := r.set(sc, t.MissionCode, fields); err != nil {
			return nil, err
		}
		if t.Event == nil {
			return nil, nil
		}
		_, err := r.events.InsertOne(sc, t.Event)
		return nil, err
	})
	return err
}

func (r *missions) set(ctx context.Context, code string, fields bson.M) error {
	res, err := r.missions.UpdateOne(ctx, bson.M{"missionCode": code}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

type events Store

func (r *events) Create(ctx context.Context, e *model.MissionEvent) error {
	_, err := r.events.InsertOne(ctx, e)
	return err
}

// ListByMission sorts on createdAt, then on the ULID id, which preserves
// append order for events stamped in the same millisecond.
func (r *events) ListByMission(ctx context.Context, code string) ([]*model.MissionEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.events.Find(ctx, bson.M{"missionCode": code}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*model.MissionEvent{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
