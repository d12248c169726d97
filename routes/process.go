package routes

import (
	"net/http"
	"strings"

	"mediaforge/models"
)

type processForm struct {
	ObjectURI    string `validate:"required,max=1024"`
	JobID        string `validate:"omitempty,max=128"`
	TargetFormat string `validate:"required,alphanum,max=8"`
	Quality      string `validate:"omitempty,oneof=high medium low"`
	Width        int    `validate:"gte=0,lte=16384"`
	Height       int    `validate:"gte=0,lte=16384"`
}

// ProcessHandler runs a conversion job for an uploaded object and returns
// its signed download URL.
func (s *Server) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	form := processForm{
		ObjectURI:    formValueOr(r, "objectURI", ""),
		JobID:        formValueOr(r, "jobId", ""),
		TargetFormat: strings.ToLower(formValueOr(r, "targetFormat", "")),
		Quality:      strings.ToLower(formValueOr(r, "quality", "")),
	}
	var err error
	if form.Width, err = intFormValue(r, "width", 0); err != nil {
		respondError(w, err)
		return
	}
	if form.Height, err = intFormValue(r, "height", 0); err != nil {
		respondError(w, err)
		return
	}
	if err := s.validate.Struct(form); err != nil {
		respondError(w, validationError(err))
		return
	}

	source, err := models.ParseObjectURI(form.ObjectURI, s.Store.Scheme())
	if err != nil {
		respondError(w, err)
		return
	}
	quality, err := models.ParseQuality(form.Quality)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.Jobs.Process(r.Context(), models.ConversionRequest{
		Source:       source,
		JobID:        form.JobID,
		TargetFormat: form.TargetFormat,
		Quality:      quality,
		Width:        form.Width,
		Height:       form.Height,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
