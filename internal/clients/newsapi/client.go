// Package newsapi implements a client for the newsapi.org REST API.
package newsapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://newsapi.org"

// Article is a single news item. Only articles with a title,
// description and URL are returned.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Client queries the everything endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a newsapi.org client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("client", "newsapi").Logger(),
	}
}

type everythingResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search queries Portuguese-language articles sorted by relevancy.
// Incomplete articles (missing title, description or URL) are dropped.
func (c *Client) Search(query string, pageSize int) ([]Article, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "pt")
	params.Set("sortBy", "relevancy")
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	params.Set("apiKey", c.apiKey)

	endpoint := fmt.Sprintf("%s/v2/everything?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	var payload everythingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}

	if payload.Status != "ok" {
		return nil, fmt.Errorf("news API error: %s (%s)", payload.Message, payload.Code)
	}

	articles := make([]Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		if a.Title == "" || a.Description == "" || a.URL == "" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		articles = append(articles, Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			ImageURL:    a.URLToImage,
			PublishedAt: published,
		})
	}

	c.log.Debug().Str("query", query).Int("articles", len(articles)).Msg("Fetched news")

	return articles, nil
}
