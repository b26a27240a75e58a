// Package playback serves inspection videos and track snapshots from the
// media directory, with byte-range support for seeking players.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrOutsideRoot = errors.New("path escapes media root")

func init() {
	// not every host ships a mime.types with video entries
	_ = mime.AddExtensionType(".mp4", "video/mp4")
	_ = mime.AddExtensionType(".webm", "video/webm")
	_ = mime.AddExtensionType(".mov", "video/quicktime")
}

// MediaService serves files addressed relative to the media root.
type MediaService interface {
	ServeMedia(w http.ResponseWriter, r *http.Request, rel string) error
}

type Server struct {
	root   string
	logger *slog.Logger
}

func NewServer(root string, logger *slog.Logger) *Server {
	return &Server{root: root, logger: logger}
}

func (s *Server) Root() string {
	return s.root
}

// Resolve maps a slash-separated relative path onto the media root.
func (s *Server) Resolve(rel string) (string, error) {
	if s.root == "" {
		return "", ErrOutsideRoot
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", ErrOutsideRoot
		}
	}
	clean := path.Clean("/" + rel)
	if clean == "/" {
		return "", ErrOutsideRoot
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func (s *Server) ServeMedia(w http.ResponseWriter, r *http.Request, rel string) error {
	filePath, err := s.Resolve(rel)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}
	return s.ServeFile(w, r, filePath)
}

func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	size := stat.Size()
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	parsedRange, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// malformed ranges fall back to the whole file
		parsedRange = nil
	case err != nil:
		return err
	}

	if parsedRange == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			if _, err := io.Copy(w, file); err != nil && s.logger != nil {
				s.logger.Debug("media copy interrupted", "path", filePath, "error", err)
			}
		}
		return nil
	}

	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", parsedRange.ContentLength()))
	w.Header().Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method != http.MethodHead {
		if _, err := io.CopyN(w, file, parsedRange.ContentLength()); err != nil && s.logger != nil {
			s.logger.Debug("media copy interrupted", "path", filePath, "error", err)
		}
	}
	return nil
}
