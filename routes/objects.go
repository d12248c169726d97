package routes

import (
	"errors"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"mediaforge/logger"
	writerbackends "mediaforge/writerBackends"
)

// RelayUploadHandler accepts the body of a relay PUT URL and stores it.
func (s *Server) RelayUploadHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Relay.Verify(chi.URLParam(r, "token"), http.MethodPut)
	if err != nil {
		logger.Warnf("Rejected relay upload: %v", err)
		respondDetail(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}

	ct := r.Header.Get("Content-Type")
	if claims.ContentType != "" && claims.ContentType != "application/octet-stream" && ct != "" && ct != claims.ContentType {
		respondDetail(w, http.StatusForbidden, "forbidden", "content type does not match the signed URL")
		return
	}
	if ct == "" {
		ct = claims.ContentType
	}

	body := http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)
	if err := s.Store.Store(r.Context(), claims.Subject, body, ct); err != nil {
		logger.Errorf("Relay upload of %s failed: %v", claims.Subject, err)
		s.Metrics.ObserveTransfer("relay_in", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondDetail(w, http.StatusRequestEntityTooLarge, "validation", "upload exceeds the size limit")
			return
		}
		respondDetail(w, http.StatusInternalServerError, "transfer", "failed to store object")
		return
	}
	s.Metrics.ObserveTransfer("relay_in", nil)
	w.WriteHeader(http.StatusOK)
}

// countingWriter remembers whether anything reached the client.
type countingWriter struct {
	w       http.ResponseWriter
	written int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	return n, err
}

// RelayDownloadHandler streams the object named by a relay GET URL.
func (s *Server) RelayDownloadHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Relay.Verify(chi.URLParam(r, "token"), http.MethodGet)
	if err != nil {
		logger.Warnf("Rejected relay download: %v", err)
		respondDetail(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}

	ct := mime.TypeByExtension(path.Ext(claims.Subject))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(claims.Subject)+`"`)

	cw := &countingWriter{w: w}
	err = s.Store.Fetch(r.Context(), claims.Subject, cw)
	s.Metrics.ObserveTransfer("relay_out", err)
	if err == nil {
		return
	}
	logger.Errorf("Relay download of %s failed: %v", claims.Subject, err)
	if cw.written > 0 {
		// headers are gone; the client sees a truncated body
		return
	}
	w.Header().Del("Content-Disposition")
	if errors.Is(err, writerbackends.ErrNotFound) {
		respondDetail(w, http.StatusNotFound, "not_found", "object not found")
		return
	}
	respondDetail(w, http.StatusInternalServerError, "transfer", "failed to read object")
}
