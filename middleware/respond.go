package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dcode-github/property_marketplace/models"
)

func reject(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse{Success: false, Message: message, Code: code})
}
