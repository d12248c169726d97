package routes

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mediaforge/logger"
)

// DownloadHandler streams a converted file from the outbound scratch
// directory and deletes it once a full GET response has been written.
func (s *Server) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || filename == "." || filename == ".." || filename != filepath.Base(filename) ||
		strings.ContainsAny(filename, `/\`) {
		respondDetail(w, http.StatusBadRequest, "validation", "invalid file name")
		return
	}

	p := filepath.Join(s.Config.OutboundDir, filename)
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			respondDetail(w, http.StatusNotFound, "not_found", "file not found")
			return
		}
		logger.Errorf("Failed to open %s: %v", p, err)
		respondDetail(w, http.StatusInternalServerError, "internal", "failed to open file")
		return
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		respondDetail(w, http.StatusNotFound, "not_found", "file not found")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	http.ServeContent(ww, r, filename, info.ModTime(), f)
	f.Close()

	// partial, conditional and HEAD replies leave the file for the next request
	if r.Method != http.MethodGet || ww.Status() != http.StatusOK || int64(ww.BytesWritten()) != info.Size() {
		logger.Debugf("Keeping %s after %s response with status %d", p, r.Method, ww.Status())
		return
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnf("Failed to remove downloaded file %s: %v", p, err)
		return
	}
	logger.Infof("Removed downloaded file %s", p)
}
