package httpds

import (
	"context"
	"io"
	"net/url"
	"path"
)

// Remote is a Source backed by an http(s) URL.
type Remote struct {
	client *Client
	url    string
}

// NewRemote returns a Remote that fetches rawURL with c.
func NewRemote(c *Client, rawURL string) *Remote { return &Remote{client: c, url: rawURL} }

// Name returns the URL.
func (r *Remote) Name() string { return r.url }

// BaseName names routed output after the URL path, falling back to
// SafeFilenameFromURL when the path has no usable last element.
func (r *Remote) BaseName() string {
	u, err := url.Parse(r.url)
	if err == nil {
		base := path.Base(u.Path)
		if base != "/" && base != "." && u.RawQuery == "" {
			return filenameCleaner.ReplaceAllString(base, "_")
		}
	}
	return SafeFilenameFromURL(r.url)
}

// Open issues the GET and returns the response body.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
