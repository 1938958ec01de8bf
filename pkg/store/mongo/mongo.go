// Package mongo provides a MongoDB-backed member store.
//
// MongoDB has no foreign keys, so parent existence is checked before writes
// and subtree deletion walks the parent links level by level before a
// single DeleteMany.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/downline/pkg/store"
	"github.com/matzehuels/downline/pkg/tree"
)

// DefaultDatabase is used when Open is given an empty database name.
const DefaultDatabase = "downline"

const collectionName = "members"

// Store persists members in a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// memberDoc is the BSON form of a record.
type memberDoc struct {
	OwnerID   string    `bson:"owner_id"`
	ID        string    `bson:"id"`
	Name      string    `bson:"name"`
	Capital   float64   `bson:"capital"`
	Level     int       `bson:"level"`
	ParentID  string    `bson:"parent_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func toDoc(r tree.Record) memberDoc {
	return memberDoc{
		OwnerID:   r.OwnerID,
		ID:        r.ID,
		Name:      r.Name,
		Capital:   r.Capital,
		Level:     int(r.Level),
		ParentID:  r.ParentID,
		CreatedAt: r.CreatedAt.UTC().Truncate(time.Millisecond),
	}
}

func (d memberDoc) record() tree.Record {
	return tree.Record{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Name:      d.Name,
		Capital:   d.Capital,
		Level:     tree.Level(d.Level),
		ParentID:  d.ParentID,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// Open connects to uri, selects database and ensures the indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if database == "" {
		database = DefaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, coll: client.Database(database).Collection(collectionName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "parent_id", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "level", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func byID(ownerID, id string) bson.D {
	return bson.D{{Key: "owner_id", Value: ownerID}, {Key: "id", Value: id}}
}

// List returns the owner's records ordered by level, then creation time.
func (s *Store) List(ctx context.Context, ownerID string) ([]tree.Record, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "level", Value: 1}, {Key: "created_at", Value: 1}, {Key: "id", Value: 1},
	})
	cur, err := s.coll.Find(ctx, bson.D{{Key: "owner_id", Value: ownerID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	var docs []memberDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}

	out := make([]tree.Record, len(docs))
	for i, d := range docs {
		out[i] = d.record()
	}
	return out, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, ownerID, id string) (tree.Record, error) {
	var d memberDoc
	err := s.coll.FindOne(ctx, byID(ownerID, id)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tree.Record{}, store.ErrNotFound
	}
	if err != nil {
		return tree.Record{}, fmt.Errorf("get member: %w", err)
	}
	return d.record(), nil
}

// Insert adds a record after checking that its parent exists.
func (s *Store) Insert(ctx context.Context, r tree.Record) error {
	if r.ParentID != "" {
		if err := s.requireParent(ctx, r.OwnerID, r.ParentID); err != nil {
			return err
		}
	}
	if _, err := s.coll.InsertOne(ctx, toDoc(r)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// Delete removes the record and its subtree.
func (s *Store) Delete(ctx context.Context, ownerID, id string) (int, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return 0, err
	}

	all := []string{id}
	frontier := []string{id}
	for len(frontier) > 0 {
		children, err := s.childIDs(ctx, ownerID, frontier)
		if err != nil {
			return 0, err
		}
		all = append(all, children...)
		frontier = children
	}

	res, err := s.coll.DeleteMany(ctx, bson.D{
		{Key: "owner_id", Value: ownerID},
		{Key: "id", Value: bson.D{{Key: "$in", Value: all}}},
	})
	if err != nil {
		return 0, fmt.Errorf("delete members: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (s *Store) childIDs(ctx context.Context, ownerID string, parents []string) ([]string, error) {
	cur, err := s.coll.Find(ctx, bson.D{
		{Key: "owner_id", Value: ownerID},
		{Key: "parent_id", Value: bson.D{{Key: "$in", Value: parents}}},
	}, options.Find().SetProjection(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find children: %w", err)
	}
	var docs []memberDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// UpdateParent moves a record under parentID.
func (s *Store) UpdateParent(ctx context.Context, ownerID, id, parentID string) error {
	if err := s.requireParent(ctx, ownerID, parentID); err != nil {
		return err
	}
	return s.update(ctx, ownerID, id, bson.D{{Key: "parent_id", Value: parentID}})
}

// Rename changes the name of a record.
func (s *Store) Rename(ctx context.Context, ownerID, id, name string) error {
	return s.update(ctx, ownerID, id, bson.D{{Key: "name", Value: name}})
}

func (s *Store) update(ctx context.Context, ownerID, id string, set bson.D) error {
	res, err := s.coll.UpdateOne(ctx, byID(ownerID, id), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CountChildren counts the direct children of parentID.
func (s *Store) CountChildren(ctx context.Context, ownerID, parentID string) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{
		{Key: "owner_id", Value: ownerID}, {Key: "parent_id", Value: parentID},
	})
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return int(n), nil
}

func (s *Store) requireParent(ctx context.Context, ownerID, parentID string) error {
	n, err := s.coll.CountDocuments(ctx, byID(ownerID, parentID), options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check parent: %w", err)
	}
	if n == 0 {
		return store.ErrParentNotFound
	}
	return nil
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
