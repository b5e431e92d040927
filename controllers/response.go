package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/booking"
	"github.com/dcode-github/property_marketplace/lifecycle"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/store"
	"github.com/dcode-github/property_marketplace/utils"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// API holds the collaborators shared by the HTTP handlers.
type API struct {
	Properties   *lifecycle.Service
	Bookings     *booking.Service
	Users        store.UserStore
	Tokens       *utils.TokenIssuer
	Cache        *ListingCache
	Stats        *StatsAggregator
	Logger       *zap.Logger
	Production   bool
	IsAdminEmail func(email string) bool
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindInvalidState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, resp models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeError answers with the status for err's kind. Internal errors are
// logged in full and the client only sees a generic message.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)
	if kind != apperrors.KindInternal {
		var appErr *apperrors.Error
		errors.As(err, &appErr)
		writeJSON(w, status, models.APIResponse{Message: appErr.Message, Code: appErr.Code})
		return
	}

	a.Logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("uri", r.URL.Path),
		zap.Error(err))
	resp := models.APIResponse{Message: "Something went wrong, please try again later", Code: apperrors.CodeInternal}
	if !a.Production {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

var errEmptyBody = apperrors.Validation("", "request body is required")

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return apperrors.Validation("", "invalid request payload")
	}
	return nil
}

func pathID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("", "invalid id")
	}
	return id, nil
}

// mustCaller returns the identity set by the auth middleware.
func mustCaller(r *http.Request) utils.Caller {
	caller, _ := utils.CallerFrom(r.Context())
	return caller
}

// optionalCaller reads a bearer token on public routes. An absent or bad
// token yields an anonymous caller.
func (a *API) optionalCaller(r *http.Request) utils.Caller {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return utils.Caller{}
	}
	claims, err := a.Tokens.ValidateJWT(h[len(prefix):])
	if err != nil {
		return utils.Caller{}
	}
	return claims.Caller()
}

func HealthCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: "ok"})
	}
}
