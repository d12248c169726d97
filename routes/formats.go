package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediaforge/encoder"
	"mediaforge/models"
)

// FormatsHandler lists the output formats of a category.
func FormatsHandler(w http.ResponseWriter, r *http.Request) {
	cat, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"formats": encoder.OutputFormats(cat),
	})
}
