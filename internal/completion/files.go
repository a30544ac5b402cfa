// internal/completion/files.go
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	apperrors "answer-gateway/internal/common/errors"
)

// LookupFilename resolves a file id to its display name (GET /files/{id}).
func (c *Client) LookupFilename(ctx context.Context, fileID string) (string, error) {
	var f fileObject
	if err := c.doJSON(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID), nil, &f, false); err != nil {
		return "", err
	}
	if f.Filename == "" {
		return "", apperrors.NewMalformedResponseError(fmt.Errorf("file %s has no filename", fileID))
	}
	return f.Filename, nil
}

// UploadFile uploads a local document for use by assistants (POST /files).
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.NewBadRequestError(fmt.Sprintf("open %s: %v", path, err))
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", apperrors.NewInternalError(fmt.Errorf("read %s: %w", path, err))
	}
	if err := mw.Close(); err != nil {
		return "", apperrors.NewInternalError(err)
	}

	raw, err := c.send(ctx, http.MethodPost, "/files", &buf, requestOptions{contentType: mw.FormDataContentType()})
	if err != nil {
		return "", err
	}
	var obj fileObject
	if err := json.Unmarshal(raw, &obj); err != nil || obj.ID == "" {
		return "", apperrors.NewMalformedResponseError(fmt.Errorf("upload %s: unexpected response", path))
	}
	return obj.ID, nil
}
