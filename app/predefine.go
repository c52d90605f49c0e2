// Package app contains the application services.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/artpar/predefine/adapters/metrics"
	"github.com/artpar/predefine/core/events"
	"github.com/artpar/predefine/core/schema"
	"github.com/artpar/predefine/domain/predefine"
	"github.com/artpar/predefine/ports"
)

// GetOptions selects a single document.
type GetOptions struct {
	ID string
	// Bucket, when set, scopes the lookup; documents of other buckets are not found.
	Bucket string
	// Select limits the returned top-level fields.
	Select []string
	// Populate loads predefine relations one level deep.
	Populate bool
}

// Target identifies the document an update applies to.
type Target struct {
	ID     string
	Bucket string
}

// DeleteOptions selects the document to delete.
type DeleteOptions struct {
	ID     string
	Bucket string
	// Hard removes the row instead of marking it deleted.
	Hard bool
}

// PredefineDeps holds the collaborators of a PredefineService.
type PredefineDeps struct {
	Store   ports.PredefineStore
	Schema  *schema.Descriptor
	IDs     ports.IDGenerator
	Clock   ports.Clock
	Bus     *events.Bus        // optional
	Metrics *metrics.Collector // optional
	Logger  zerolog.Logger
}

// PredefineService is the CRUD façade over the predefine store.
//
// Every write is normalized against the schema descriptor before it reaches
// the store. Store errors (predefine.ErrNotFound, predefine.ErrDuplicate,
// *predefine.ValidationError) are returned unchanged and never retried.
type PredefineService struct {
	store   ports.PredefineStore
	desc    *schema.Descriptor
	ids     ports.IDGenerator
	clock   ports.Clock
	bus     *events.Bus
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewPredefineService creates a new predefine service.
func NewPredefineService(deps PredefineDeps) *PredefineService {
	return &PredefineService{
		store:   deps.Store,
		desc:    deps.Schema,
		ids:     deps.IDs,
		clock:   deps.Clock,
		bus:     deps.Bus,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Schema returns the descriptor the service validates against.
func (s *PredefineService) Schema() *schema.Descriptor {
	return s.desc
}

// Get returns one page of live documents.
// An unknown bucket yields predefine.ErrNotFound.
func (s *PredefineService) Get(ctx context.Context, q predefine.Query) (page predefine.Page, err error) {
	defer func() { s.observe("get", err) }()

	if q.Bucket != "" && !s.desc.HasBucket(q.Bucket) {
		return predefine.Page{}, predefine.ErrNotFound
	}
	q, err = q.Normalize()
	if err != nil {
		return predefine.Page{}, err
	}

	page, err = s.store.List(ctx, q)
	if err != nil {
		return predefine.Page{}, err
	}
	if q.Populate {
		if err := s.populate(ctx, page.Data); err != nil {
			return predefine.Page{}, err
		}
	}
	for i := range page.Data {
		page.Data[i] = page.Data[i].Only(q.Select)
	}
	return page, nil
}

// GetByID returns a live document.
func (s *PredefineService) GetByID(ctx context.Context, opts GetOptions) (doc predefine.Document, err error) {
	defer func() { s.observe("get_by_id", err) }()

	doc, err = s.find(ctx, opts.ID, opts.Bucket)
	if err != nil {
		return predefine.Document{}, err
	}
	if opts.Populate {
		docs := []predefine.Document{doc}
		if err := s.populate(ctx, docs); err != nil {
			return predefine.Document{}, err
		}
		doc = docs[0]
	}
	return doc.Only(opts.Select), nil
}

// Post creates a document.
// The id is generated unless the document carries one.
func (s *PredefineService) Post(ctx context.Context, doc predefine.Document) (created predefine.Document, err error) {
	defer func() { s.observe("post", err) }()

	doc, err = predefine.Normalize(s.desc, doc)
	if err != nil {
		return predefine.Document{}, err
	}
	if err := s.checkRelations(ctx, doc); err != nil {
		return predefine.Document{}, err
	}

	if doc.ID == "" {
		doc.ID = s.ids.New()
	}
	now := s.clock.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.DeletedAt = nil

	if err := s.store.Create(ctx, doc); err != nil {
		return predefine.Document{}, err
	}

	s.logger.Debug().Str("id", doc.ID).Str("bucket", doc.Bucket).Str("code", doc.Code).Msg("predefine created")
	s.publish(ctx, events.Created, doc)
	return doc, nil
}

// Patch merges changes into a live document.
func (s *PredefineService) Patch(ctx context.Context, target Target, changes predefine.Changes) (predefine.Document, error) {
	return s.update(ctx, "patch", target, changes)
}

// Put merges changes into a live document the same way Patch does: fields
// missing from changes keep their stored value.
func (s *PredefineService) Put(ctx context.Context, target Target, changes predefine.Changes) (predefine.Document, error) {
	return s.update(ctx, "put", target, changes)
}

func (s *PredefineService) update(ctx context.Context, op string, target Target, changes predefine.Changes) (doc predefine.Document, err error) {
	defer func() { s.observe(op, err) }()

	current, err := s.find(ctx, target.ID, target.Bucket)
	if err != nil {
		return predefine.Document{}, err
	}

	doc, err = predefine.ApplyChanges(current, changes)
	if err != nil {
		return predefine.Document{}, err
	}
	doc, err = predefine.Normalize(s.desc, doc)
	if err != nil {
		return predefine.Document{}, err
	}
	if err := s.checkRelations(ctx, doc); err != nil {
		return predefine.Document{}, err
	}

	doc.UpdatedAt = s.clock.Now()
	if err := s.store.Update(ctx, doc); err != nil {
		return predefine.Document{}, err
	}

	s.logger.Debug().Str("id", doc.ID).Str("bucket", doc.Bucket).Str("op", op).Msg("predefine updated")
	s.publish(ctx, events.Updated, doc)
	return doc, nil
}

// Delete deletes a live document and returns it as it was before deletion.
// Without opts.Hard the document is only marked deleted.
func (s *PredefineService) Delete(ctx context.Context, opts DeleteOptions) (doc predefine.Document, err error) {
	defer func() { s.observe("delete", err) }()

	doc, err = s.find(ctx, opts.ID, opts.Bucket)
	if err != nil {
		return predefine.Document{}, err
	}

	if opts.Hard {
		err = s.store.Delete(ctx, doc.ID)
	} else {
		now := s.clock.Now()
		if err = s.store.SoftDelete(ctx, doc.ID, now); err == nil {
			doc.DeletedAt = &now
			doc.UpdatedAt = now
		}
	}
	if err != nil {
		return predefine.Document{}, err
	}

	s.logger.Debug().Str("id", doc.ID).Bool("hard", opts.Hard).Msg("predefine deleted")
	s.publish(ctx, events.Deleted, doc)
	return doc, nil
}

// find loads a live document, scoped to bucket when set.
func (s *PredefineService) find(ctx context.Context, id, bucket string) (predefine.Document, error) {
	if bucket != "" && !s.desc.HasBucket(bucket) {
		return predefine.Document{}, predefine.ErrNotFound
	}
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return predefine.Document{}, err
	}
	if bucket != "" && doc.Bucket != bucket {
		return predefine.Document{}, predefine.ErrNotFound
	}
	return doc, nil
}

// checkRelations verifies that relations pointing at the predefine model
// reference live documents. Relations to other models are not checked.
func (s *PredefineService) checkRelations(ctx context.Context, doc predefine.Document) error {
	names, ids := s.predefineRefs([]predefine.Document{doc})
	if len(ids) == 0 {
		return nil
	}

	found, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("check relations: %w", err)
	}

	verr := &predefine.ValidationError{}
	for _, name := range names {
		ref := doc.Relations[name]
		if _, ok := found[ref.ID]; !ok {
			verr.Add("relations."+name, fmt.Sprintf("%s %q does not exist", s.desc.ModelName(), ref.ID))
		}
	}
	return verr.OrNil()
}

// populate replaces predefine relation ids with the referenced documents,
// reduced to schema.PopulateSelect. Only one level is loaded.
func (s *PredefineService) populate(ctx context.Context, docs []predefine.Document) error {
	_, ids := s.predefineRefs(docs)
	if len(ids) == 0 {
		return nil
	}

	found, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("populate relations: %w", err)
	}

	var populated int
	for i := range docs {
		if len(docs[i].Relations) == 0 {
			continue
		}
		rels := make(map[string]predefine.Ref, len(docs[i].Relations))
		for name, ref := range docs[i].Relations {
			if target, ok := found[ref.ID]; ok && s.targetsModel(name) {
				target = target.Only(schema.PopulateSelect)
				ref.Doc = &target
				populated++
			}
			rels[name] = ref
		}
		docs[i].Relations = rels
	}

	if s.metrics != nil {
		s.metrics.Populated.Add(float64(populated))
	}
	return nil
}

// predefineRefs returns the sorted relation names of the first document and
// the distinct ids of all documents that point at the predefine model.
func (s *PredefineService) predefineRefs(docs []predefine.Document) ([]string, []string) {
	var names []string
	seen := map[string]bool{}
	var ids []string
	for i, doc := range docs {
		for name, ref := range doc.Relations {
			if ref.ID == "" || !s.targetsModel(name) {
				continue
			}
			if i == 0 {
				names = append(names, name)
			}
			if !seen[ref.ID] {
				seen[ref.ID] = true
				ids = append(ids, ref.ID)
			}
		}
	}
	sort.Strings(names)
	sort.Strings(ids)
	return names, ids
}

func (s *PredefineService) targetsModel(name string) bool {
	r, ok := s.desc.Relation(name)
	return ok && r.Targets(s.desc.ModelName())
}

func (s *PredefineService) publish(ctx context.Context, name string, doc predefine.Document) {
	if s.bus == nil || !s.bus.HasSubscribers(name) {
		return
	}
	s.bus.Publish(ctx, events.Event{
		Name:      name,
		Namespace: doc.Namespace,
		Bucket:    doc.Bucket,
		ID:        doc.ID,
		Data:      doc,
		At:        s.clock.Now(),
	})
}

func (s *PredefineService) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.OperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

// resultLabel classifies an operation error for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, predefine.ErrNotFound):
		return "not_found"
	case errors.Is(err, predefine.ErrDuplicate):
		return "duplicate"
	case predefine.IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
