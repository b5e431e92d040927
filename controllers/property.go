package controllers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/lifecycle"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/store"
	"go.uber.org/zap"
)

const maxPageSize = 50

func (a *API) CreateProperty() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in lifecycle.PropertyInput
		if err := decodeBody(r, &in); err != nil {
			a.writeError(w, r, err)
			return
		}

		p, err := a.Properties.Create(r.Context(), mustCaller(r), in)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, models.APIResponse{
			Success: true,
			Message: "Property submitted for review",
			Data:    p,
		})
	}
}

// listingFilter parses the public listing query string.
func listingFilter(q url.Values) (store.ListingFilter, error) {
	f := store.ListingFilter{
		Location:     q.Get("location"),
		Type:         q.Get("type"),
		Availability: q.Get("availability"),
	}
	parseFloat := func(name string) (*float64, error) {
		raw := q.Get(name)
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apperrors.Validation("", name+" must be a number")
		}
		return &v, nil
	}
	parseInt := func(name string) (int, bool, error) {
		raw := q.Get(name)
		if raw == "" {
			return 0, false, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, false, apperrors.Validation("", name+" must be a non-negative integer")
		}
		return v, true, nil
	}

	var err error
	if f.MinPrice, err = parseFloat("minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parseFloat("maxPrice"); err != nil {
		return f, err
	}
	if beds, ok, err := parseInt("minBeds"); err != nil {
		return f, err
	} else if ok {
		f.MinBeds = &beds
	}

	limit, ok, err := parseInt("limit")
	if err != nil {
		return f, err
	}
	if ok {
		if limit > maxPageSize {
			limit = maxPageSize
		}
		f.Limit = int64(limit)
	}
	page, ok, err := parseInt("page")
	if err != nil {
		return f, err
	}
	if ok && page > 1 {
		size := f.Limit
		if size == 0 {
			size = 10
		}
		f.Skip = int64(page-1) * size
	}
	return f, nil
}

// GetAllProperties serves approved listings, cached per query string.
func (a *API) GetAllProperties() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		cacheKey := generateCacheKey(query)
		if cached, ok := a.Cache.Get(r.Context(), cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			_, _ = w.Write(cached)
			return
		}

		f, err := listingFilter(query)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		props, err := a.Properties.ListApproved(r.Context(), f)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		resultBytes, err := json.Marshal(models.APIResponse{Success: true, Data: props})
		if err != nil {
			a.writeError(w, r, apperrors.Internal("encode listings", err))
			return
		}
		a.Cache.Set(r.Context(), cacheKey, resultBytes)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "MISS")
		_, _ = w.Write(resultBytes)
	}
}

func (a *API) GetProperty() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		p, err := a.Properties.Get(r.Context(), a.optionalCaller(r), id)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: p})
	}
}

func (a *API) UpdateProperty() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		var in lifecycle.PropertyInput
		if err := decodeBody(r, &in); err != nil {
			a.writeError(w, r, err)
			return
		}

		p, err := a.Properties.Edit(r.Context(), mustCaller(r), id, in)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.Cache.invalidateAsync()
		writeJSON(w, http.StatusOK, models.APIResponse{
			Success: true,
			Message: "Property updated and sent back for review",
			Data:    p,
		})
	}
}

func (a *API) DeleteProperty() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := a.Properties.Remove(r.Context(), mustCaller(r), id); err != nil {
			a.writeError(w, r, err)
			return
		}
		a.Cache.invalidateAsync()
		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: "Property deleted successfully"})
	}
}

func (a *API) ApproveProperty() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		p, err := a.Properties.Approve(r.Context(), mustCaller(r), id)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.Cache.invalidateAsync()
		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: "Property approved", Data: p})
	}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (a *API) RejectProperty() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		var req rejectRequest
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}

		p, err := a.Properties.Reject(r.Context(), mustCaller(r), id, req.Reason)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.Cache.invalidateAsync()
		a.Logger.Info("rejection recorded",
			zap.String("propertyId", id.Hex()),
			zap.Duration("gracePeriod", a.Properties.GracePeriod()))
		writeJSON(w, http.StatusOK, models.APIResponse{
			Success: true,
			Message: "Property rejected and scheduled for deletion",
			Data:    p,
		})
	}
}
