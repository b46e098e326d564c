package mdtemplate

import (
	"context"
	"log/slog"

	"github.com/go-microdata/mdtemplate/fetch"
)

// RenderFromURL fetches the document at url via f, extracts every
// top-level microdata item from it and renders each through p, in
// document order. A nil f falls back to fetch.NewHTTPFetcher(). Fetched
// bodies are kept in the process-wide document cache when the plan's
// config allows it.
func (p *Plan) RenderFromURL(ctx context.Context, url string, f fetch.Fetcher) ([]string, error) {
	body, err := p.fetchDocument(ctx, url, f)
	if err != nil {
		return nil, err
	}
	return p.RenderFromMicrodata(string(body))
}

func (p *Plan) fetchDocument(ctx context.Context, url string, f fetch.Fetcher) ([]byte, error) {
	useCache := p.config.CacheMode != CacheNone && p.config.CacheExternalDocuments
	if useCache {
		if body, ok := documentCache.Get(url); ok {
			p.config.logger().Debug("document cache hit", slog.String("url", url))
			return body, nil
		}
	}
	if f == nil {
		f = fetch.NewHTTPFetcher()
	}
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, newError(IoError, "fetch document", err)
	}
	if useCache {
		documentCache.Add(url, body)
	}
	return body, nil
}
