// Package results records evaluation runs in MongoDB.
package results

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const runsCollection = "runs"

// Run is one evaluation run document.
type Run struct {
	Dataset    string    `bson:"dataset"`
	Classifier string    `bson:"classifier"`
	Way        int       `bson:"way"`
	Shot       int       `bson:"shot"`
	Query      int       `bson:"query"`
	Episodes   int       `bson:"episodes"`
	Accuracy   float64   `bson:"accuracy"`
	StdDev     float64   `bson:"std_dev"`
	CI95       float64   `bson:"ci95"`
	Checkpoint string    `bson:"checkpoint,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func Connect(ctx context.Context, mongoUrl string) (*mongo.Database, error) {
	registry := bson.NewRegistry()
	registry.RegisterTypeMapEntry(0x03, reflect.TypeOf(bson.M{}))

	if mongoUrl == "" {
		mongoUrl = "mongodb://localhost:27017/protonet"
	}

	uri, err := url.Parse(mongoUrl)
	if err != nil {
		return nil, err
	}

	if client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoUrl).SetRegistry(registry)); err != nil {
		return nil, err
	} else {
		dbName := strings.Trim(uri.Path, "/")
		if dbName == "" {
			dbName = "protonet"
		}
		return client.Database(dbName), nil
	}
}

// EnsureIndex creates the named index unless it already exists.
func EnsureIndex(db *mongo.Database, ctx context.Context, collectionName string, model mongo.IndexModel) error {
	if model.Options == nil || model.Options.Name == nil {
		return fmt.Errorf("must provide a name for index")
	}
	expectedName := *model.Options.Name

	idxs := db.Collection(collectionName).Indexes()
	cur, err := idxs.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to list indexes: %v", err)
	}

	for cur.Next(ctx) {
		var d bson.M
		if err := cur.Decode(&d); err != nil {
			return fmt.Errorf("unable to decode bson index document: %v", err)
		}
		if name, ok := d["name"].(string); ok && name == expectedName {
			return nil
		}
	}

	_, err = idxs.CreateOne(ctx, model)
	return err
}

// WithTransaction runs callback inside a session when the deployment
// supports transactions. Standalone servers do not, so sessions are gated
// by MONGO_SUPPORTS_TRANSACTIONS.
func WithTransaction(db *mongo.Database, ctx context.Context, callback func(ctx context.Context) (any, error)) (any, error) {
	if os.Getenv("MONGO_SUPPORTS_TRANSACTIONS") == "true" {
		session, err := db.Client().StartSession()
		if err != nil {
			return nil, err
		}
		defer session.EndSession(ctx)

		return session.WithTransaction(ctx, func(ctx mongo.SessionContext) (interface{}, error) {
			return callback(ctx)
		})
	} else {
		return callback(ctx)
	}
}

// Record inserts a run document, creating the created_at index on first
// use.
func Record(ctx context.Context, db *mongo.Database, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if err := EnsureIndex(db, ctx, runsCollection, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: -1}},
		Options: options.Index().SetName("created_at_desc"),
	}); err != nil {
		return err
	}
	_, err := WithTransaction(db, ctx, func(ctx context.Context) (any, error) {
		return db.Collection(runsCollection).InsertOne(ctx, run)
	})
	return err
}
