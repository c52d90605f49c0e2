package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/predefine/app"
	"github.com/artpar/predefine/core/schema"
	"github.com/artpar/predefine/domain/predefine"
	"github.com/artpar/predefine/pkg/jsonapi"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

// PredefineHandler serves the predefine CRUD routes.
type PredefineHandler struct {
	service *app.PredefineService
	desc    *schema.Descriptor
	logger  zerolog.Logger
}

// NewPredefineHandler creates a new predefine handler.
func NewPredefineHandler(service *app.PredefineService, logger zerolog.Logger) *PredefineHandler {
	return &PredefineHandler{
		service: service,
		desc:    service.Schema(),
		logger:  logger,
	}
}

// Routes registers the collection routes on r.
//
// A single path segment naming a known bucket scopes GET and POST to that
// bucket; otherwise it is a document id. With two segments the first is
// always the bucket.
func (h *PredefineHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/schema", h.schema)
	r.Get("/schema/", h.schema)

	r.Get("/{seg}", h.getOrList)
	r.Post("/{seg}", h.createInBucket)
	r.Patch("/{seg}", h.patch)
	r.Put("/{seg}", h.put)
	r.Delete("/{seg}", h.delete)

	r.Get("/{seg}/schema", h.schema)
	r.Get("/{seg}/schema/", h.schema)
	r.Get("/{seg}/{id}", h.get)
	r.Patch("/{seg}/{id}", h.patch)
	r.Put("/{seg}/{id}", h.put)
	r.Delete("/{seg}/{id}", h.delete)
}

// list returns one page of documents.
//
//	@Summary		List predefines
//	@Tags			Predefine
//	@Produce		json
//	@Param			limit				query		int		false	"Maximum number of documents"
//	@Param			skip				query		int		false	"Number of documents to skip"
//	@Param			page				query		int		false	"1-based page number"
//	@Param			sort				query		string	false	"Sort field, - for descending"
//	@Param			q					query		string	false	"Search on code or name"
//	@Param			filter[namespace]	query		string	false	"Namespace"
//	@Success		200					{object}	predefine.Page
//	@Failure		400					{object}	jsonapi.Document
//	@Router			/predefines [get]
func (h *PredefineHandler) list(w http.ResponseWriter, r *http.Request) {
	h.listBucket(w, r, "")
}

func (h *PredefineHandler) listBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	q, errs := parseQuery(r)
	if len(errs) > 0 {
		jsonapi.WriteError(w, errs...)
		return
	}
	if bucket != "" {
		q.Bucket = bucket
	}

	page, err := h.service.Get(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if page.LastModified != nil {
		w.Header().Set("Last-Modified", page.LastModified.UTC().Format(http.TimeFormat))
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PredefineHandler) getOrList(w http.ResponseWriter, r *http.Request) {
	seg := chi.URLParam(r, "seg")
	if h.desc.HasBucket(seg) {
		h.listBucket(w, r, seg)
		return
	}
	h.getDocument(w, r, "", seg)
}

// get returns a single document.
//
//	@Summary		Get predefine by ID
//	@Tags			Predefine
//	@Produce		json
//	@Param			bucket		path		string	true	"Bucket"
//	@Param			id			path		string	true	"Document ID"
//	@Param			select		query		string	false	"Comma separated fields"
//	@Param			populate	query		bool	false	"Load related documents"
//	@Success		200			{object}	predefine.Document
//	@Failure		404			{object}	jsonapi.Document
//	@Router			/predefines/{bucket}/{id} [get]
func (h *PredefineHandler) get(w http.ResponseWriter, r *http.Request) {
	h.getDocument(w, r, chi.URLParam(r, "seg"), chi.URLParam(r, "id"))
}

func (h *PredefineHandler) getDocument(w http.ResponseWriter, r *http.Request, bucket, id string) {
	populate, err := parseBool(r, "populate")
	if err != nil {
		jsonapi.WriteError(w, *err)
		return
	}
	doc, serr := h.service.GetByID(r.Context(), app.GetOptions{
		ID:       id,
		Bucket:   bucket,
		Select:   parseList(r.URL.Query().Get("select")),
		Populate: populate,
	})
	if serr != nil {
		h.writeError(w, r, serr)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// create creates a document.
//
//	@Summary		Create predefine
//	@Tags			Predefine
//	@Accept			json
//	@Produce		json
//	@Param			body	body		predefine.Document	true	"Document"
//	@Success		201		{object}	predefine.Document
//	@Failure		400		{object}	jsonapi.Document
//	@Failure		409		{object}	jsonapi.Document
//	@Failure		422		{object}	jsonapi.Document
//	@Router			/predefines [post]
func (h *PredefineHandler) create(w http.ResponseWriter, r *http.Request) {
	h.createDocument(w, r, "")
}

func (h *PredefineHandler) createInBucket(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "seg")
	if !h.desc.HasBucket(bucket) {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("bucket"))
		return
	}
	h.createDocument(w, r, bucket)
}

func (h *PredefineHandler) createDocument(w http.ResponseWriter, r *http.Request, bucket string) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	doc, err := predefine.Decode(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if bucket != "" {
		if doc.Bucket != "" && doc.Bucket != bucket {
			jsonapi.WriteError(w, jsonapi.ErrValidation("bucket", "does not match the path bucket "+bucket))
			return
		}
		doc.Bucket = bucket
	}

	created, err := h.service.Post(r.Context(), doc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// patch merges changes into a document.
//
//	@Summary		Update predefine
//	@Tags			Predefine
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string	true	"Document ID"
//	@Param			body	body		object	true	"Changes"
//	@Success		200		{object}	predefine.Document
//	@Failure		404		{object}	jsonapi.Document
//	@Failure		409		{object}	jsonapi.Document
//	@Failure		422		{object}	jsonapi.Document
//	@Router			/predefines/{id} [patch]
func (h *PredefineHandler) patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.service.Patch)
}

// put merges changes into a document the same way patch does.
//
//	@Summary		Replace predefine fields
//	@Tags			Predefine
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string	true	"Document ID"
//	@Param			body	body		object	true	"Changes"
//	@Success		200		{object}	predefine.Document
//	@Router			/predefines/{id} [put]
func (h *PredefineHandler) put(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.service.Put)
}

type updateFunc func(ctx context.Context, target app.Target, changes predefine.Changes) (predefine.Document, error)

func (h *PredefineHandler) update(w http.ResponseWriter, r *http.Request, apply updateFunc) {
	target := h.target(r)

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var changes predefine.Changes
	if err := json.Unmarshal(body, &changes); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("request body must be a JSON object"))
		return
	}

	doc, err := apply(r.Context(), target, changes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// delete deletes a document.
//
//	@Summary		Delete predefine
//	@Tags			Predefine
//	@Produce		json
//	@Param			id		path		string	true	"Document ID"
//	@Param			hard	query		bool	false	"Remove instead of marking deleted"
//	@Success		200		{object}	predefine.Document
//	@Failure		404		{object}	jsonapi.Document
//	@Router			/predefines/{id} [delete]
func (h *PredefineHandler) delete(w http.ResponseWriter, r *http.Request) {
	hard, perr := parseBool(r, "hard")
	if perr != nil {
		jsonapi.WriteError(w, *perr)
		return
	}
	target := h.target(r)

	doc, err := h.service.Delete(r.Context(), app.DeleteOptions{ID: target.ID, Bucket: target.Bucket, Hard: hard})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// schema returns the JSON schema of the document model.
// The descriptor fingerprint is the ETag.
//
//	@Summary		Get predefine schema
//	@Tags			Predefine
//	@Produce		json
//	@Success		200	{object}	object
//	@Success		304	"Not modified"
//	@Router			/predefines/schema/ [get]
func (h *PredefineHandler) schema(w http.ResponseWriter, r *http.Request) {
	if bucket := chi.URLParam(r, "seg"); bucket != "" && !h.desc.HasBucket(bucket) {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("bucket"))
		return
	}

	etag := `"` + h.desc.Fingerprint() + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, h.desc.JSONSchema())
}

// target reads the document id and optional bucket from the path.
func (h *PredefineHandler) target(r *http.Request) app.Target {
	if id := chi.URLParam(r, "id"); id != "" {
		return app.Target{ID: id, Bucket: chi.URLParam(r, "seg")}
	}
	return app.Target{ID: chi.URLParam(r, "seg")}
}

func (h *PredefineHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read request body")
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("failed to read request body"))
		return nil, false
	}
	if len(body) > maxBodySize {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusRequestEntityTooLarge, "body_too_large", "Request Entity Too Large").
			Detailf("request body exceeds %d bytes", maxBodySize).Build())
		return nil, false
	}
	if !json.Valid(body) {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("request body is not valid JSON"))
		return nil, false
	}
	return body, true
}

// writeError maps service errors to JSON:API error documents.
func (h *PredefineHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *predefine.ValidationError
	switch {
	case errors.As(err, &verr):
		errs := make([]jsonapi.Error, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			errs = append(errs, jsonapi.ErrValidation(f.Field, f.Message))
		}
		jsonapi.WriteError(w, errs...)
	case errors.Is(err, predefine.ErrNotFound):
		if t := h.target(r); t.ID != "" && r.Method != http.MethodPost {
			jsonapi.WriteError(w, jsonapi.ErrNotFoundWithID(h.desc.ModelName(), t.ID))
			return
		}
		jsonapi.WriteError(w, jsonapi.ErrNotFound(h.desc.ModelName()))
	case errors.Is(err, predefine.ErrDuplicate):
		jsonapi.WriteError(w, jsonapi.ErrConflict(h.desc.ModelName()+" with the same namespace, bucket and code already exists"))
	default:
		reqID := middleware.GetReqID(r.Context())
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", reqID).
			Msg("predefine request failed")
		jsonapi.WriteError(w, jsonapi.ErrInternalWithID(reqID))
	}
}

// parseQuery reads list parameters from the query string.
func parseQuery(r *http.Request) (predefine.Query, []jsonapi.Error) {
	values := r.URL.Query()
	var errs []jsonapi.Error

	parseInt := func(name string) int {
		raw := values.Get(name)
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, jsonapi.ErrInvalidParameter(name, name+" must be an integer"))
		}
		return n
	}

	q := predefine.Query{
		Limit:     parseInt("limit"),
		Skip:      parseInt("skip"),
		Page:      parseInt("page"),
		Sort:      values.Get("sort"),
		Q:         values.Get("q"),
		Select:    parseList(values.Get("select")),
		Namespace: values.Get("filter[namespace]"),
		Bucket:    values.Get("filter[bucket]"),
		Code:      values.Get("filter[code]"),
	}
	populate, perr := parseBool(r, "populate")
	if perr != nil {
		errs = append(errs, *perr)
	}
	q.Populate = populate
	return q, errs
}

func parseBool(r *http.Request, name string) (bool, *jsonapi.Error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e := jsonapi.ErrInvalidParameter(name, name+" must be a boolean")
		return false, &e
	}
	return b, nil
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
