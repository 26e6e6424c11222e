package serpapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

type organicResponse struct {
	Error          string          `json:"error"`
	OrganicResults []organicResult `json:"organic_results"`
}

type organicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
}

// TopResultName returns the title of the first organic Google result for query.
// It satisfies domain.WebSearcher.
func (c *Client) TopResultName(ctx context.Context, query string) (string, error) {
	var resp organicResponse
	if err := c.search(ctx, "google", query, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" && len(resp.OrganicResults) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrProductNotFound, resp.Error)
	}

	for _, r := range resp.OrganicResults {
		if title := strings.TrimSpace(r.Title); title != "" {
			return title, nil
		}
	}
	return "", domain.ErrProductNotFound
}
