package handler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/seantiz/urlcheck/internal/urlparts"
)

// Names of the two standard file mounts.
const (
	NameMedia  = "media"
	NameStatic = "static"
)

// MountHandler serves files from root for paths under prefix. Paths outside
// the prefix are declined. Missing files and directories are answered with 404.
type MountHandler struct {
	name   string
	prefix string
	root   fs.FS
}

// NewMountHandler creates a file mount. prefix is matched literally, so it
// normally ends with a slash (e.g. "/media/").
func NewMountHandler(name, prefix string, root fs.FS) *MountHandler {
	return &MountHandler{
		name:   name,
		prefix: prefix,
		root:   root,
	}
}

func (h *MountHandler) Name() string { return h.name }

// Prefix returns the mount point.
func (h *MountHandler) Prefix() string { return h.prefix }

// Handle serves the file named by the part of req.Path after the prefix.
func (h *MountHandler) Handle(_ context.Context, req Request) (*Response, error) {
	rel, ok := urlparts.RelativePath(h.prefix, req.Path)
	if !ok {
		return nil, nil
	}

	name, err := url.PathUnescape(rel)
	if err != nil {
		return NotFound(), nil
	}

	// Clean against a rooted path so ".." can never leave the mount.
	name = path.Clean("/" + name)[1:]
	if name == "" {
		return NotFound(), nil
	}

	info, err := fs.Stat(h.root, name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return NotFound(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: stat %s: %w", h.name, name, err)
	}
	if info.IsDir() {
		return NotFound(), nil
	}

	body, err := fs.ReadFile(h.root, name)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", h.name, name, err)
	}

	header := make(http.Header)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	if mod := info.ModTime(); !mod.IsZero() {
		header.Set("Last-Modified", mod.UTC().Format(http.TimeFormat))
	}

	return &Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       body,
	}, nil
}
