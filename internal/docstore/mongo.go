package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"origtext/internal/models"
)

type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) coll(catalogueID int) *mongo.Collection {
	return m.db.Collection(CollectionName(catalogueID))
}

func (m *Mongo) Save(ctx context.Context, o models.OriginalText) error {
	_, err := m.coll(o.CatalogueID).ReplaceOne(ctx, bson.M{"_id": o.ID}, o, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save original text %s: %w", o.ID, err)
	}
	return nil
}

func (m *Mongo) SaveAll(ctx context.Context, items []models.OriginalText) error {
	for catalogueID, group := range groupByCatalogue(items) {
		writes := make([]mongo.WriteModel, 0, len(group))
		for _, o := range group {
			writes = append(writes, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": o.ID}).
				SetReplacement(o).
				SetUpsert(true))
		}
		if _, err := m.coll(catalogueID).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
			return fmt.Errorf("bulk save original texts: %w", err)
		}
	}
	return nil
}

func (m *Mongo) FindByID(ctx context.Context, catalogueID int, id string) (models.OriginalText, bool, error) {
	var out models.OriginalText
	err := m.coll(catalogueID).FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.OriginalText{}, false, nil
	}
	if err != nil {
		return models.OriginalText{}, false, fmt.Errorf("find original text %s: %w", id, err)
	}
	return out, true, nil
}

func (m *Mongo) DeleteByID(ctx context.Context, catalogueID int, id string) error {
	if _, err := m.coll(catalogueID).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete original text %s: %w", id, err)
	}
	return nil
}

func (m *Mongo) UpdateMetadata(ctx context.Context, catalogueID int, id string, md models.Metadata, modified time.Time) error {
	return m.setFields(ctx, catalogueID, id, metadataFields(md, modified))
}

func (m *Mongo) UpdateOrder(ctx context.Context, catalogueID int, id string, order int, modified time.Time) error {
	return m.setFields(ctx, catalogueID, id, orderFields(order, modified))
}

func (m *Mongo) setFields(ctx context.Context, catalogueID int, id string, fields map[string]any) error {
	if _, err := m.coll(catalogueID).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)}); err != nil {
		return fmt.Errorf("update original text %s: %w", id, err)
	}
	return nil
}

func (m *Mongo) FindAll(ctx context.Context, catalogueID int, f Filter, page models.Page) ([]models.OriginalText, int64, error) {
	if !f.AllEntries && len(f.EntryIDs) == 0 {
		return []models.OriginalText{}, 0, nil
	}
	page = page.Normalize()
	filter := bson.M{}
	if len(f.Types) > 0 {
		filter["type"] = bson.M{"$in": f.Types}
	}
	if !f.AllEntries {
		filter["entryId"] = bson.M{"$in": f.EntryIDs}
	}

	coll := m.coll(catalogueID)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count original texts: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find original texts: %w", err)
	}
	out := make([]models.OriginalText, 0, page.Size)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode original texts: %w", err)
	}
	return out, total, nil
}
