package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/media"
)

type UploadHandler struct {
	uploader media.Uploader
}

func NewUploadHandler(uploader media.Uploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

type UploadRequest struct {
	Kind        string `json:"kind"`
	ContentType string `json:"contentType"`
}

type DirectUploadResponse struct {
	URL string `json:"url"`
}

func (h *UploadHandler) Sign(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "must be logged in"))
	}
	var req UploadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	up, err := h.uploader.SignUpload(c.Request().Context(), media.Kind(req.Kind), uid, req.ContentType)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, up)
}

// Direct stores a multipart "file" field server-side.
func (h *UploadHandler) Direct(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "must be logged in"))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "file is required"))
	}
	if fh.Size > media.MaxUploadBytes {
		return writeError(c, media.ErrTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "unreadable file"))
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, media.MaxUploadBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "unreadable file"))
	}
	url, err := h.uploader.Put(c.Request().Context(), media.Kind(c.FormValue("kind")), uid, fh.Header.Get("Content-Type"), data)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, DirectUploadResponse{URL: url})
}
