package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

// DocumentFilter narrows a document listing
type DocumentFilter struct {
	Skip   int
	Limit  int
	Status DocumentStatus
}

// UploadDocument sends one file as multipart form field "file". An empty
// contentType is guessed from the filename extension.
func (c *Client) UploadDocument(ctx context.Context, filename, contentType string, r io.Reader) (*Document, error) {
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var doc Document
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/documents/upload",
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UploadFile uploads a file from disk.
func (c *Client) UploadFile(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return c.UploadDocument(ctx, path, "", f)
}

// ListDocuments returns one page of the user's documents.
func (c *Client) ListDocuments(ctx context.Context, filter DocumentFilter) (*DocumentList, error) {
	q := pageQuery(filter.Skip, filter.Limit)
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}

	var list DocumentList
	if err := c.getJSON(ctx, "/documents/", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetDocument returns one document.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.getJSON(ctx, "/documents/"+pathID(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document and its chunks.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.deleteJSON(ctx, "/documents/"+pathID(id))
}

// DocumentChunks returns the indexed chunks of a document.
func (c *Client) DocumentChunks(ctx context.Context, id string) ([]Chunk, error) {
	var chunks []Chunk
	if err := c.getJSON(ctx, "/documents/"+pathID(id)+"/chunks", nil, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// ProcessDocument queues a pending document for processing.
func (c *Client) ProcessDocument(ctx context.Context, id string) (*DocumentStatusInfo, error) {
	return c.documentAction(ctx, id, "process")
}

// ReprocessDocument discards existing chunks and runs the pipeline again.
func (c *Client) ReprocessDocument(ctx context.Context, id string) (*DocumentStatusInfo, error) {
	return c.documentAction(ctx, id, "reprocess")
}

func (c *Client) documentAction(ctx context.Context, id, action string) (*DocumentStatusInfo, error) {
	var info DocumentStatusInfo
	if err := c.postJSON(ctx, "/documents/"+pathID(id)+"/"+action, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DocumentStatus returns the processing state of a document.
func (c *Client) DocumentStatus(ctx context.Context, id string) (*DocumentStatusInfo, error) {
	var info DocumentStatusInfo
	if err := c.getJSON(ctx, "/documents/"+pathID(id)+"/status", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// WatchDocument polls the status of a document every interval until the
// pipeline reaches a terminal state or ctx ends. onChange is called each
// time the status differs from the previous poll.
func (c *Client) WatchDocument(ctx context.Context, id string, interval time.Duration, onChange func(DocumentStatusInfo)) (*DocumentStatusInfo, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last DocumentStatus
	for {
		info, err := c.DocumentStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if info.Status != last {
			last = info.Status
			if onChange != nil {
				onChange(*info)
			}
		}
		if info.Status.Terminal() {
			return info, nil
		}

		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-ticker.C:
		}
	}
}
