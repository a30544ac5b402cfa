// internal/completion/index.go
package completion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	apperrors "answer-gateway/internal/common/errors"
)

const indexPageSize = 100

// CreateIndex creates an empty document index and returns its id.
func (c *Client) CreateIndex(ctx context.Context, name string) (string, error) {
	var obj indexObject
	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores", map[string]string{"name": name}, &obj, true); err != nil {
		return "", err
	}
	if obj.ID == "" {
		return "", apperrors.NewMalformedResponseError(fmt.Errorf("create index %q: missing id", name))
	}
	return obj.ID, nil
}

// ListFiles pages through every file attached to the index and resolves
// their names. Files whose name cannot be looked up are skipped.
func (c *Client) ListFiles(ctx context.Context, indexID string) ([]IndexFile, error) {
	var files []IndexFile
	after := ""

	for {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(indexPageSize))
		if after != "" {
			q.Set("after", after)
		}
		path := fmt.Sprintf("/vector_stores/%s/files?%s", url.PathEscape(indexID), q.Encode())

		var page indexFileList
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &page, true); err != nil {
			return nil, err
		}

		for _, item := range page.Data {
			name, err := c.LookupFilename(ctx, item.ID)
			if err != nil {
				c.logger.Warn("skipping index file with unknown name", map[string]interface{}{
					"fileId": item.ID,
					"error":  err.Error(),
				})
				continue
			}
			files = append(files, IndexFile{ID: item.ID, Filename: name})
		}

		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		after = page.LastID
		if after == "" {
			after = page.Data[len(page.Data)-1].ID
		}
	}

	return files, nil
}

// AttachFiles starts a batch that adds uploaded files to the index.
func (c *Client) AttachFiles(ctx context.Context, indexID string, fileIDs []string) (*FileBatch, error) {
	path := fmt.Sprintf("/vector_stores/%s/file_batches", url.PathEscape(indexID))
	var batch FileBatch
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]interface{}{"file_ids": fileIDs}, &batch, true); err != nil {
		return nil, err
	}
	if batch.ID == "" {
		return nil, apperrors.NewMalformedResponseError(fmt.Errorf("file batch response missing id"))
	}
	return &batch, nil
}

// GetFileBatch returns the current state of an attach batch.
func (c *Client) GetFileBatch(ctx context.Context, indexID, batchID string) (*FileBatch, error) {
	path := fmt.Sprintf("/vector_stores/%s/file_batches/%s", url.PathEscape(indexID), url.PathEscape(batchID))
	var batch FileBatch
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &batch, true); err != nil {
		return nil, err
	}
	return &batch, nil
}

// RemoveFile detaches a file from the index.
func (c *Client) RemoveFile(ctx context.Context, indexID, fileID string) error {
	path := fmt.Sprintf("/vector_stores/%s/files/%s", url.PathEscape(indexID), url.PathEscape(fileID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, true)
}

// AttachIndexToAssistant makes the assistant search the given index.
func (c *Client) AttachIndexToAssistant(ctx context.Context, assistantID, indexID string) error {
	payload := map[string]interface{}{
		"tool_resources": map[string]interface{}{
			"file_search": map[string]interface{}{"vector_store_ids": []string{indexID}},
		},
	}
	return c.doJSON(ctx, http.MethodPost, "/assistants/"+url.PathEscape(assistantID), payload, nil, true)
}
