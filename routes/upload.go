package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"mediaforge/encoder"
	"mediaforge/failures"
	"mediaforge/logger"
	"mediaforge/models"
)

type uploadRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"omitempty,max=255"`
	Size        int64  `json:"size" validate:"gte=0"`
}

// UploadHandler reserves an input object for a new job. A JSON body returns
// a signed URL the client uploads to; a multipart body with a "file" part is
// stored through the server directly.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.directUpload(w, r)
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		respondError(w, failures.Validationf("invalid request body: %v", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, validationError(err))
		return
	}
	if req.Size > s.Config.MaxUploadBytes {
		respondError(w, failures.Validationf("file is too large: %d bytes (limit %d)", req.Size, s.Config.MaxUploadBytes))
		return
	}

	slot, err := s.newSlot(req.Filename)
	if err != nil {
		respondError(w, err)
		return
	}

	slot.UploadURL, err = s.Store.IssueUploadURL(r.Context(), slot.ObjectName, req.ContentType, s.Config.SignedURLExpiry())
	if err != nil {
		logger.Errorf("Failed to sign upload URL for %s: %v", slot.ObjectName, err)
		respondError(w, failures.Transfer("sign upload URL for "+slot.ObjectName, err))
		return
	}

	logger.Infof("Issued upload slot %s for %s", slot.ObjectURI, req.Filename)
	respondJSON(w, http.StatusOK, slot)
}

func (s *Server) directUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, failures.Validationf("missing or unreadable file part: %v", err))
		return
	}
	defer file.Close()

	slot, err := s.newSlot(header.Filename)
	if err != nil {
		respondError(w, err)
		return
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		respondError(w, failures.Validationf("unreadable upload: %v", err))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respondError(w, failures.Transfer("rewind upload", err))
		return
	}

	if err := s.Store.Store(r.Context(), slot.ObjectName, file, mtype.String()); err != nil {
		logger.Errorf("Failed to store upload %s: %v", slot.ObjectName, err)
		s.Metrics.ObserveTransfer("upload", err)
		respondError(w, failures.Transfer("store "+slot.ObjectName, err))
		return
	}
	s.Metrics.ObserveTransfer("upload", nil)

	logger.Infof("Stored direct upload %s (%s, %d bytes)", slot.ObjectURI, mtype.String(), header.Size)
	respondJSON(w, http.StatusOK, slot)
}

// newSlot classifies filename and names the input object for a fresh job.
func (s *Server) newSlot(filename string) (models.UploadSlot, error) {
	ext := strings.ToLower(path.Ext(filename))
	cat, err := encoder.Classify(ext)
	if err != nil {
		return models.UploadSlot{}, err
	}

	jobID := uuid.NewString()
	ref := models.ObjectReference{
		Container: s.Store.Container(),
		Path:      models.InputObjectName(jobID, ext),
	}
	return models.UploadSlot{
		JobID:            jobID,
		FileType:         cat.String(),
		OriginalFilename: filename,
		ObjectURI:        ref.URI(s.Store.Scheme()),
		ObjectName:       ref.Path,
		ExpiresInMinutes: s.Config.SignedURLExpiryMinutes,
	}, nil
}
