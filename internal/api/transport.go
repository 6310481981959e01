package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Response is what a transport returns for one POST.
type Response struct {
	StatusCode int
	Body       []byte
}

// PostFunc sends one request to the service.
type PostFunc func(ctx context.Context, url string, headers map[string]string, body []byte) (*Response, error)

// FetchFunc downloads an encrypted file blob.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// UploadFunc posts an encrypted file blob as multipart form data and
// returns the response status code.
type UploadFunc func(ctx context.Context, url string, fields map[string]string, content []byte) (int, error)

// HTTPTransport returns a PostFunc backed by client.
func HTTPTransport(client *http.Client) PostFunc {
	return func(ctx context.Context, url string, headers map[string]string, body []byte) (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return &Response{StatusCode: resp.StatusCode, Body: data}, nil
	}
}

// HTTPFetcher returns a FetchFunc that GETs url, retrying transient
// failures according to retry.
func HTTPFetcher(client *http.Client, retry *RetryConfig) FetchFunc {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return func(ctx context.Context, url string) ([]byte, error) {
		for attempt := 0; ; attempt++ {
			data, status, err := get(ctx, client, url)
			if err == nil && status >= 200 && status < 300 {
				return data, nil
			}
			if err != nil {
				if ctx.Err() != nil || attempt >= retry.MaxRetries {
					return nil, &NetworkError{Err: err, URL: url, Attempt: attempt + 1}
				}
			} else if !retry.ShouldRetry(attempt, status) {
				return nil, &RemoteError{StatusCode: status, Body: string(data)}
			}
			if err := retry.Wait(ctx, attempt); err != nil {
				return nil, &NetworkError{Err: err, URL: url, Attempt: attempt + 1}
			}
		}
	}
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// HTTPUploader returns an UploadFunc backed by client. Form fields are
// written before the file part, which is named "file".
func HTTPUploader(client *http.Client) UploadFunc {
	return func(ctx context.Context, url string, fields map[string]string, content []byte) (int, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range fields {
			if err := w.WriteField(k, v); err != nil {
				return 0, fmt.Errorf("write form field %s: %w", k, err) //coverage:ignore
			}
		}
		part, err := w.CreateFormFile("file", "encrypted-file")
		if err != nil {
			return 0, fmt.Errorf("create form file: %w", err) //coverage:ignore
		}
		if _, err := part.Write(content); err != nil {
			return 0, fmt.Errorf("write form file: %w", err) //coverage:ignore
		}
		if err := w.Close(); err != nil {
			return 0, fmt.Errorf("close form: %w", err) //coverage:ignore
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
		if err != nil {
			return 0, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", w.FormDataContentType())

		resp, err := client.Do(req)
		if err != nil {
			return 0, &NetworkError{Err: err, URL: url, Attempt: 1}
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
}
