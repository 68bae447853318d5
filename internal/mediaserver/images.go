package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"komf/internal/metadata"
	"komf/internal/ratelimit"
)

const maxImageSize = 20 << 20

// ImageLoader resolves a provider image into uploadable bytes.
type ImageLoader interface {
	Load(ctx context.Context, image *metadata.Image) (Image, error)
}

// HTTPImageLoader downloads images referenced by URL.
type HTTPImageLoader struct {
	client *ratelimit.Client
}

// NewHTTPImageLoader downloads through doer with the default retry policy.
func NewHTTPImageLoader(doer ratelimit.Doer) *HTTPImageLoader {
	return &HTTPImageLoader{client: ratelimit.NewClient(doer, nil, ratelimit.DefaultRetryPolicy())}
}

// Load returns image.Data when already present, otherwise downloads image.URL.
func (l *HTTPImageLoader) Load(ctx context.Context, image *metadata.Image) (Image, error) {
	if image == nil {
		return Image{}, errors.New("image is nil")
	}
	if len(image.Data) > 0 {
		return Image{Data: image.Data, MimeType: mimeType(image.MimeType, image.Data)}, nil
	}
	if strings.TrimSpace(image.URL) == "" {
		return Image{}, errors.New("image has neither data nor url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, image.URL, nil)
	if err != nil {
		return Image{}, fmt.Errorf("build image request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if err := ratelimit.CheckResponse(resp); err != nil {
		return Image{}, fmt.Errorf("download image: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	return Image{Data: data, MimeType: mimeType(resp.Header.Get("Content-Type"), data)}, nil
}

func mimeType(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); strings.HasPrefix(declared, "image/") {
		return declared
	}
	return http.DetectContentType(data)
}
