package httpapp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/mediacache/internal/domain"
	"github.com/cesargomez89/mediacache/internal/http/dto"
	"github.com/cesargomez89/mediacache/internal/mediadb"
	"github.com/cesargomez89/mediacache/internal/sqlbuild"
	"github.com/cesargomez89/mediacache/internal/transform"
)

// pruneSourceID is the source id of prune jobs, so only one is queued
const pruneSourceID = "cache"

// libraryArtistsKind lists the artists of saved tracks
const libraryArtistsKind = "trackartists"

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request, get func(uri string) (transform.Object, error)) {
	uri, err := uriParam(r, "uri")
	if err != nil {
		h.writeValidation(w, []dto.ValidationError{{Field: "uri", Message: "invalid escaping"}})
		return
	}
	obj, err := get(uri)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, obj)
}

func (h *Handler) GetTrack(w http.ResponseWriter, r *http.Request) {
	h.getEntity(w, r, func(uri string) (transform.Object, error) {
		return h.Cache.GetTrackJSON(r.Context(), uri)
	})
}

func (h *Handler) GetArtist(w http.ResponseWriter, r *http.Request) {
	h.getEntity(w, r, func(uri string) (transform.Object, error) {
		return h.Cache.GetArtistJSON(r.Context(), uri)
	})
}

func (h *Handler) GetUserAccount(w http.ResponseWriter, r *http.Request) {
	h.getEntity(w, r, func(uri string) (transform.Object, error) {
		return h.Cache.GetUserAccountJSON(r.Context(), uri)
	})
}

// GetCollection returns the collection, with items in start/end nested
// when either parameter is given
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	rng, given, errs := dto.ParseRange(r.URL.Query())
	if len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	if !given {
		rng = nil
	}
	h.getEntity(w, r, func(uri string) (transform.Object, error) {
		return h.Cache.GetTrackCollectionJSON(r.Context(), uri, rng)
	})
}

func (h *Handler) GetCollectionItems(w http.ResponseWriter, r *http.Request) {
	rng, _, errs := dto.ParseRange(r.URL.Query())
	if len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	uri, err := uriParam(r, "uri")
	if err != nil {
		h.writeValidation(w, []dto.ValidationError{{Field: "uri", Message: "invalid escaping"}})
		return
	}
	items, err := h.Cache.GetTrackCollectionItemsJSON(r.Context(), uri, *rng)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	opts, errs := dto.ParseLibraryQuery(r.URL.Query())
	if len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	var (
		page *mediadb.Page
		err  error
	)
	if name := chi.URLParam(r, "kind"); name == libraryArtistsKind {
		page, err = h.Cache.GetLibraryArtistsJSON(r.Context(), opts)
	} else {
		var kind sqlbuild.LibraryKind
		kind, err = sqlbuild.ParseLibraryKind(name)
		if err == nil {
			page, err = h.Cache.GetLibraryItemsJSON(r.Context(), kind, opts)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	opts, errs := dto.ParseHistoryQuery(r.URL.Query())
	if len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	page, err := h.Cache.GetPlaybackHistoryItemsJSON(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Cache.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

type stateValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if errs := dto.ValidateStateKey(key); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	state, err := h.Cache.GetState(r.Context(), []string{key})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	value, ok := state[key]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "state key not set"})
		return
	}
	h.writeJSON(w, http.StatusOK, stateValue{Key: key, Value: value})
}

func (h *Handler) PutState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if errs := dto.ValidateStateKey(key); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	var body stateValue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeValidation(w, []dto.ValidationError{{Field: "body", Message: "must be a JSON object with a value"}})
		return
	}
	if err := h.Cache.SetState(r.Context(), map[string]string{key: body.Value}); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateValue{Key: key, Value: body.Value})
}

func (h *Handler) StartSync(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	if _, err := h.Providers.Get(name); err != nil {
		h.writeError(w, r, err)
		return
	}
	job, err := h.JobService.EnqueueJob(r.Context(), name, domain.JobTypeLibrarySync)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, dto.NewJobResponse(job))
}

func (h *Handler) StartPrune(w http.ResponseWriter, r *http.Request) {
	job, err := h.JobService.EnqueueJob(r.Context(), pruneSourceID, domain.JobTypePrune)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, dto.NewJobResponse(job))
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.JobService.ListJobs(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]dto.JobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = dto.NewJobResponse(j)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.JobService.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewJobResponse(job))
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.JobService.CancelJob(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.GetJob(w, r)
}

func (h *Handler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.JobService.RetryJob(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.GetJob(w, r)
}

func (h *Handler) ClearFinishedJobs(w http.ResponseWriter, r *http.Request) {
	if err := h.JobService.ClearFinishedJobs(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
