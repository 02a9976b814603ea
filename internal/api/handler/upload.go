package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const maxUploadSize = 5 << 20

// readUploads loads the files posted under field. Requests that are not
// multipart carry no files.
func readUploads(c echo.Context, field string, limit int) ([]ports.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	files := form.File[field]
	if len(files) > limit {
		return nil, fmt.Errorf("%w: at most %d allowed", domain.ErrTooManyImages, limit)
	}

	uploads := make([]ports.Upload, 0, len(files))
	for _, fh := range files {
		u, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

// readUpload returns the single optional file posted under field.
func readUpload(c echo.Context, field string) (*ports.Upload, error) {
	uploads, err := readUploads(c, field, 1)
	if err != nil || len(uploads) == 0 {
		return nil, err
	}
	return &uploads[0], nil
}

func readFile(fh *multipart.FileHeader) (ports.Upload, error) {
	if fh.Size > maxUploadSize {
		return ports.Upload{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge, fh.Filename+" exceeds the 5MB limit")
	}
	f, err := fh.Open()
	if err != nil {
		return ports.Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return ports.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	return ports.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	}, nil
}
