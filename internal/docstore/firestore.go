package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"origtext/internal/models"
)

// Firestore "in" filters accept at most this many values.
const firestoreInLimit = 30

type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (s *Firestore) Close() error {
	return s.client.Close()
}

func (s *Firestore) coll(catalogueID int) *firestore.CollectionRef {
	return s.client.Collection(CollectionName(catalogueID))
}

func (s *Firestore) Save(ctx context.Context, o models.OriginalText) error {
	if _, err := s.coll(o.CatalogueID).Doc(o.ID).Set(ctx, o); err != nil {
		return fmt.Errorf("save original text %s: %w", o.ID, err)
	}
	return nil
}

func (s *Firestore) SaveAll(ctx context.Context, items []models.OriginalText) error {
	if len(items) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(items))
	for _, o := range items {
		job, err := bw.Set(s.coll(o.CatalogueID).Doc(o.ID), o)
		if err != nil {
			bw.End()
			return fmt.Errorf("queue original text %s: %w", o.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	var errs []error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, fmt.Errorf("save original text %s: %w", items[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Firestore) FindByID(ctx context.Context, catalogueID int, id string) (models.OriginalText, bool, error) {
	snap, err := s.coll(catalogueID).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.OriginalText{}, false, nil
	}
	if err != nil {
		return models.OriginalText{}, false, fmt.Errorf("find original text %s: %w", id, err)
	}
	var out models.OriginalText
	if err := snap.DataTo(&out); err != nil {
		return models.OriginalText{}, false, fmt.Errorf("decode original text %s: %w", id, err)
	}
	return out, true, nil
}

func (s *Firestore) DeleteByID(ctx context.Context, catalogueID int, id string) error {
	if _, err := s.coll(catalogueID).Doc(id).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("delete original text %s: %w", id, err)
	}
	return nil
}

func (s *Firestore) UpdateMetadata(ctx context.Context, catalogueID int, id string, md models.Metadata, modified time.Time) error {
	return s.setFields(ctx, catalogueID, id, metadataFields(md, modified))
}

func (s *Firestore) UpdateOrder(ctx context.Context, catalogueID int, id string, order int, modified time.Time) error {
	return s.setFields(ctx, catalogueID, id, orderFields(order, modified))
}

func (s *Firestore) setFields(ctx context.Context, catalogueID int, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	for path, v := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: v})
	}
	_, err := s.coll(catalogueID).Doc(id).Update(ctx, updates)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("update original text %s: %w", id, err)
	}
	return nil
}

func (s *Firestore) FindAll(ctx context.Context, catalogueID int, f Filter, page models.Page) ([]models.OriginalText, int64, error) {
	page = page.Normalize()
	if f.AllEntries {
		return s.findByTypes(ctx, catalogueID, f.Types, page)
	}
	if len(f.EntryIDs) == 0 {
		return []models.OriginalText{}, 0, nil
	}

	// Entry sets larger than the "in" limit are split and queried concurrently,
	// then merged, type-filtered and paged here.
	var (
		mu     sync.Mutex
		merged []models.OriginalText
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, chunk := range chunkStrings(f.EntryIDs, firestoreInLimit) {
		chunk := chunk
		g.Go(func() error {
			q := s.coll(catalogueID).Where("entryId", "in", chunk)
			items, err := collect(gctx, q)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, it := range items {
				if matchesTypes(f.Types, it.Type) {
					merged = append(merged, it)
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })

	total := int64(len(merged))
	start := page.Offset()
	if start >= len(merged) {
		return []models.OriginalText{}, total, nil
	}
	end := start + page.Size
	if end > len(merged) {
		end = len(merged)
	}
	return merged[start:end], total, nil
}

func (s *Firestore) findByTypes(ctx context.Context, catalogueID int, types []int, page models.Page) ([]models.OriginalText, int64, error) {
	q := s.coll(catalogueID).Query
	if len(types) > 0 {
		if len(types) > firestoreInLimit {
			return nil, 0, fmt.Errorf("too many type filters: %d", len(types))
		}
		q = q.Where("type", "in", types)
	}

	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count original texts: %w", err)
	}
	var total int64
	if v, ok := res["all"].(*firestorepb.Value); ok {
		total = v.GetIntegerValue()
	}

	items, err := collect(ctx, q.OrderBy(firestore.DocumentID, firestore.Asc).Offset(page.Offset()).Limit(page.Size))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collect(ctx context.Context, q firestore.Query) ([]models.OriginalText, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	out := make([]models.OriginalText, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query original texts: %w", err)
		}
		var o models.OriginalText
		if err := snap.DataTo(&o); err != nil {
			return nil, fmt.Errorf("decode original text %s: %w", snap.Ref.ID, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func chunkStrings(in []string, size int) [][]string {
	out := make([][]string, 0, (len(in)+size-1)/size)
	for start := 0; start < len(in); start += size {
		end := start + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[start:end])
	}
	return out
}
