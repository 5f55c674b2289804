package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/csheth/pdfchat/internal/docs"
)

const defaultClientTimeout = 2 * time.Minute

// Client talks to a pdfchatd server and satisfies both store interfaces.
type Client struct {
	base string
	http *http.Client
}

var (
	_ docs.DocumentStore = (*Client)(nil)
	_ docs.MessageStore  = (*Client)(nil)
)

// NewClient targets the server at base, e.g. "http://localhost:8080".
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

// CreateDocument streams content as the multipart field "pdf".
func (c *Client) CreateDocument(ctx context.Context, filename string, content io.Reader) (docs.Document, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdf"; filename=%q`, filename))
		header.Set("Content-Type", "application/pdf")
		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/documents/upload", pr)
	if err != nil {
		pr.Close()
		return docs.Document{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var doc docs.Document
	if err := c.do(req, http.StatusCreated, &doc); err != nil {
		pr.Close()
		return docs.Document{}, err
	}
	return doc, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (docs.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/documents/"+url.PathEscape(id), nil)
	if err != nil {
		return docs.Document{}, err
	}
	var doc docs.Document
	if err := c.do(req, http.StatusOK, &doc); err != nil {
		return docs.Document{}, err
	}
	return doc, nil
}

// GetDocumentBytes returns the PDF body; the caller closes it.
func (c *Client) GetDocumentBytes(ctx context.Context, id string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/documents/"+url.PathEscape(id)+"/pdf", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

func (c *Client) ListMessages(ctx context.Context, documentID string) ([]docs.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/documents/"+url.PathEscape(documentID)+"/messages", nil)
	if err != nil {
		return nil, err
	}
	var messages []docs.Message
	if err := c.do(req, http.StatusOK, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) CreateMessage(ctx context.Context, documentID string, role docs.Role, content string, citations []docs.Citation) (docs.Message, error) {
	payload, err := json.Marshal(createMessageRequest{
		DocumentID: documentID,
		Content:    content,
		Role:       role,
		Citations:  citations,
	})
	if err != nil {
		return docs.Message{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/messages", bytes.NewReader(payload))
	if err != nil {
		return docs.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var msg docs.Message
	if err := c.do(req, http.StatusCreated, &msg); err != nil {
		return docs.Message{}, err
	}
	return msg, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, nil)
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// decodeError maps a failed response onto the error taxonomy.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload errorResponse
	_ = json.Unmarshal(body, &payload)
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		field := payload.Field
		if field == "" {
			field = "request"
		}
		return &docs.ValidationError{Field: field, Reason: message}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, docs.ErrNotFound)
	default:
		return fmt.Errorf("server returned %s: %s", resp.Status, message)
	}
}
