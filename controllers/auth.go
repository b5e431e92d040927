package controllers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/store"
	"github.com/dcode-github/property_marketplace/utils"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

func validateRequest(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email address")
		case "min":
			msgs = append(msgs, fe.Field()+" must be at least "+fe.Param()+" characters")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return apperrors.Validation("", strings.Join(msgs, "; "))
}

type registerRequest struct {
	UserID   string `json:"userID" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=120"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	UserID   string `json:"userID" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (a *API) RegisterUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		req.Name = strings.TrimSpace(req.Name)
		if err := validateRequest(&req); err != nil {
			a.writeError(w, r, err)
			return
		}

		hashedPwd, err := utils.HashPassword(req.Password)
		if err != nil {
			a.writeError(w, r, apperrors.Internal("hash password", err))
			return
		}
		role := models.RoleUser
		if a.IsAdminEmail != nil && a.IsAdminEmail(req.Email) {
			role = models.RoleAdmin
		}
		user := &models.User{
			UserID:    req.UserID,
			Email:     req.Email,
			Name:      req.Name,
			Password:  hashedPwd,
			Role:      role,
			CreatedAt: time.Now(),
		}

		err = a.Users.Insert(r.Context(), user)
		if errors.Is(err, store.ErrDuplicate) {
			a.writeError(w, r, apperrors.Conflict(apperrors.CodeDuplicateUser, "userID or email already exists"))
			return
		}
		if err != nil {
			a.writeError(w, r, apperrors.Internal("create user", err))
			return
		}
		a.Logger.Info("user registered", zap.String("userId", user.UserID), zap.String("role", role))

		user.Password = ""
		writeJSON(w, http.StatusCreated, models.APIResponse{
			Success: true,
			Message: "User registered successfully",
			Data:    user,
		})
	}
}

func (a *API) LoginUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		if err := validateRequest(&req); err != nil {
			a.writeError(w, r, err)
			return
		}

		dbUser, err := a.Users.GetByUserID(r.Context(), req.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			a.writeError(w, r, apperrors.Internal("load user", err))
			return
		}
		if err != nil || !utils.CheckPasswordHash(req.Password, dbUser.Password) {
			a.Logger.Info("login failed", zap.String("userId", req.UserID))
			writeJSON(w, http.StatusUnauthorized, models.APIResponse{Message: "Invalid credentials", Code: "UNAUTHORIZED"})
			return
		}

		token, err := a.Tokens.GenerateJWT(utils.Caller{UserID: dbUser.UserID, Email: dbUser.Email, Role: dbUser.Role})
		if err != nil {
			a.writeError(w, r, apperrors.Internal("generate token", err))
			return
		}

		dbUser.Password = ""
		writeJSON(w, http.StatusOK, models.APIResponse{
			Success: true,
			Message: "Login successful",
			Data:    loginResponse{Token: token, User: dbUser},
		})
	}
}
