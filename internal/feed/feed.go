package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opuslt/opussync/internal/shared"
)

// wrapperKeys are the top-level keys the song list has been seen under.
var wrapperKeys = []string{"rdsList", "rds", "data", "items"}

// Client downloads the raw recently-played payload from the station endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *log.Logger

	// Now stamps the cache-busting query parameter. Overridable in tests.
	Now func() time.Time
}

// NewClient creates a feed client for the given endpoint URL.
func NewClient(url string, client *http.Client, logger *log.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		url:        url,
		httpClient: client,
		logger:     logger,
		Now:        time.Now,
	}
}

// Fetch downloads the feed and returns the raw list of items.
//
// An unrecognized or non-JSON payload is a recoverable condition: it is
// logged and an empty list is returned so the rest of the pass (retention
// in particular) still executes. Network and HTTP failures return an error
// wrapping [shared.ErrFeedUnavailable].
func (c *Client) Fetch(ctx context.Context) ([]map[string]any, error) {
	sep := "?"
	if strings.Contains(c.url, "?") {
		sep = "&"
	}
	url := fmt.Sprintf("%s%sv=%d", c.url, sep, c.Now().UnixMilli())

	c.logger.Info("fetching station feed", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", shared.ErrFeedUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrFeedUnavailable, resp.StatusCode)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		c.logger.Error("feed returned non-JSON payload", "preview", preview)
		return nil, nil
	}

	switch data := payload.(type) {
	case map[string]any:
		for _, key := range wrapperKeys {
			if list, ok := data[key].([]any); ok {
				return itemList(list), nil
			}
		}
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
			if len(keys) == 10 {
				break
			}
		}
		c.logger.Error("unable to locate song list in feed JSON", "keys", keys)
		return nil, nil
	case []any:
		// Some deployments return the bare list.
		return itemList(data), nil
	default:
		c.logger.Error("unexpected feed JSON shape")
		return nil, nil
	}
}

// itemList keeps the object-shaped entries and drops everything else.
func itemList(list []any) []map[string]any {
	items := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if item, ok := entry.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}
