package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"govor-biljaka/model"
)

// observationDoc is the Mongo shape of an observation. LonLat duplicates the
// location as GeoJSON for the 2dsphere index and is left out for {0,0}.
type observationDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	model.Observation `bson:",inline"`
	LonLat            *model.GeoPoint `bson:"lonlat,omitempty"`
}

func (d observationDoc) toModel() model.Observation {
	obs := d.Observation
	obs.ID = d.ID.Hex()
	return obs
}

// MongoObservationDB works against MongoDB and Cosmos DB for MongoDB.
type MongoObservationDB struct {
	mongoClient    *mongo.Client
	collection     *mongo.Collection
	databaseName   string
	collectionName string
	log            *zap.Logger
}

func NewMongoObservationDB(log *zap.Logger) *MongoObservationDB {
	return &MongoObservationDB{log: log}
}

func (db *MongoObservationDB) Connect(ctx context.Context, connectionString, databaseName, collectionName string) error {
	var err error
	db.databaseName = databaseName
	db.collectionName = collectionName

	db.mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return err
	}

	if err = db.mongoClient.Ping(ctx, nil); err != nil {
		return err
	}

	db.collection = db.mongoClient.Database(db.databaseName).Collection(db.collectionName)

	_, err = db.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "lonlat", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	db.log.Info("connected to MongoDB",
		zap.String("database", databaseName),
		zap.String("collection", collectionName),
	)
	return nil
}

func (db *MongoObservationDB) Close() error {
	if db.mongoClient != nil {
		if err := db.mongoClient.Disconnect(context.Background()); err != nil {
			return err
		}
		db.log.Info("disconnected from MongoDB")
	}
	return nil
}

func (db *MongoObservationDB) SaveObservation(ctx context.Context, obs *model.Observation) (*model.Observation, error) {
	doc := observationDoc{ID: primitive.NewObjectID(), Observation: *obs}
	if !obs.Location.IsZero() {
		doc.LonLat = model.NewGeoPoint(obs.Location)
	}
	if _, err := db.collection.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	saved := doc.toModel()
	db.log.Debug("observation saved to MongoDB", zap.String("id", saved.ID), zap.String("image", saved.Image))
	return &saved, nil
}

func (db *MongoObservationDB) ListObservations(ctx context.Context) ([]model.Observation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return db.find(ctx, bson.D{}, opts)
}

func (db *MongoObservationDB) GetObservation(ctx context.Context, id string) (*model.Observation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc observationDoc
	err = db.collection.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	obs := doc.toModel()
	return &obs, nil
}

func (db *MongoObservationDB) DeleteObservation(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := db.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *MongoObservationDB) SearchObservationsNear(ctx context.Context, center model.Point, meters float64) ([]model.Observation, error) {
	filter := bson.D{
		{Key: "lonlat", Value: bson.D{
			{Key: "$near", Value: bson.D{
				{Key: "$geometry", Value: model.NewGeoPoint(center)},
				{Key: "$maxDistance", Value: meters},
			}},
		}},
	}
	out, err := db.find(ctx, filter, options.Find())
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (db *MongoObservationDB) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]model.Observation, error) {
	cursor, err := db.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []observationDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Observation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}
