package results

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultMongoDatabase is used when no database name is configured.
	DefaultMongoDatabase = "pyvalidate"
	mongoCollection      = "runs"
)

// mongoRecord adds the normalized package name used by Filter.Package.
type mongoRecord struct {
	Record     `bson:",inline"`
	PackageKey string `bson:"package_key"`
}

// MongoStore keeps records in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri and verifies the connection with a ping.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(database).Collection(mongoCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "package_key", Value: 1}, {Key: "started_at", Value: -1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Save(ctx context.Context, r *Record) error {
	doc := mongoRecord{Record: *r, PackageKey: packageKey(r.Package)}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, f Filter) ([]Record, error) {
	query := bson.M{}
	if f.Package != "" {
		query["package_key"] = packageKey(f.Package)
	}

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find runs: %w", err)
	}
	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode runs: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
