package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dogcoloringbooks/coloringbook/internal/bulk"
	"github.com/dogcoloringbooks/coloringbook/internal/imagedata"
	"github.com/dogcoloringbooks/coloringbook/internal/models"
)

const maxFormMemory = 32 << 20

// readPhoto reads and encodes the single uploaded file in field. A missing
// file is a validation error.
func (h *Handler) readPhoto(r *http.Request, field string) (imagedata.Image, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return imagedata.Image{}, fmt.Errorf("%w: a photo is required", models.ErrValidation)
		}
		return imagedata.Image{}, fmt.Errorf("%w: failed to read upload: %v", models.ErrValidation, err)
	}
	defer file.Close()
	return encodeUpload(file)
}

// readPhotos reads every file uploaded under field.
func (h *Handler) readPhotos(r *http.Request, field string) ([]bulk.Photo, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, fmt.Errorf("%w: failed to parse upload: %v", models.ErrValidation, err)
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no photos uploaded", models.ErrValidation)
	}

	photos := make([]bulk.Photo, 0, len(headers))
	for _, header := range headers {
		img, err := encodeHeader(header)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", header.Filename, err)
		}
		photos = append(photos, bulk.Photo{Filename: header.Filename, Image: img})
	}
	return photos, nil
}

func encodeHeader(header *multipart.FileHeader) (imagedata.Image, error) {
	file, err := header.Open()
	if err != nil {
		return imagedata.Image{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()
	return encodeUpload(file)
}

// encodeUpload reads at most one byte past the limit so oversize files are
// rejected without buffering them whole.
func encodeUpload(file io.Reader) (imagedata.Image, error) {
	data, err := io.ReadAll(io.LimitReader(file, imagedata.MaxBytes+1))
	if err != nil {
		return imagedata.Image{}, fmt.Errorf("failed to read file contents: %w", err)
	}
	return imagedata.Encode(data)
}
