// Package ytapi is a thin typed client for the YouTube Data API v3. It covers
// only what the relay forwards: search, trending (mostPopular) and single
// video lookup. No retry or state logic lives here.
package ytapi

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/andybalholm/brotli"

	"github.com/darktube/tuberelay/internal/httpclient"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// ErrNotFound is returned by Video when the API knows no such id.
var ErrNotFound = errors.New("video not found")

// Client calls the Data API with one key. A zero Key is the caller's problem;
// handlers check it before delegating.
type Client struct {
	Key     string
	BaseURL string // override for tests; "" = production API
	HTTP    *http.Client
}

// Thumbnail mirrors the API thumbnail object.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Video is the catalog projection returned to the console client.
type Video struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Thumbnails   map[string]Thumbnail `json:"thumbnails"`
	ChannelTitle string               `json:"channelTitle"`
	PublishedAt  string               `json:"publishedAt"`
	Statistics   map[string]string    `json:"statistics,omitempty"`
}

// Page is one page of catalog results.
type Page struct {
	Videos        []Video `json:"videos"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	PrevPageToken string  `json:"prevPageToken,omitempty"`
}

type snippet struct {
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Thumbnails   map[string]Thumbnail `json:"thumbnails"`
	ChannelTitle string               `json:"channelTitle"`
	PublishedAt  string               `json:"publishedAt"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
	PrevPageToken string `json:"prevPageToken"`
}

type videosResponse struct {
	Items         []json.RawMessage `json:"items"`
	NextPageToken string            `json:"nextPageToken"`
	PrevPageToken string            `json:"prevPageToken"`
}

type videoItem struct {
	ID         string            `json:"id"`
	Snippet    snippet           `json:"snippet"`
	Statistics map[string]string `json:"statistics"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search runs a video search and projects the result.
func (c *Client) Search(ctx context.Context, q string, maxResults int, pageToken string) (*Page, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", q)
	params.Set("maxResults", strconv.Itoa(clampResults(maxResults)))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	var resp searchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}
	page := &Page{
		Videos:        make([]Video, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
		PrevPageToken: resp.PrevPageToken,
	}
	for _, it := range resp.Items {
		page.Videos = append(page.Videos, Video{
			ID:           it.ID.VideoID,
			Title:        it.Snippet.Title,
			Description:  it.Snippet.Description,
			Thumbnails:   it.Snippet.Thumbnails,
			ChannelTitle: it.Snippet.ChannelTitle,
			PublishedAt:  it.Snippet.PublishedAt,
		})
	}
	return page, nil
}

// Trending returns the mostPopular chart for a region.
func (c *Client) Trending(ctx context.Context, region string, maxResults int, pageToken string) (*Page, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("chart", "mostPopular")
	params.Set("regionCode", region)
	params.Set("maxResults", strconv.Itoa(clampResults(maxResults)))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	var resp videosResponse
	if err := c.get(ctx, "/videos", params, &resp); err != nil {
		return nil, err
	}
	page := &Page{
		Videos:        make([]Video, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
		PrevPageToken: resp.PrevPageToken,
	}
	for _, raw := range resp.Items {
		var it videoItem
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		page.Videos = append(page.Videos, Video{
			ID:           it.ID,
			Title:        it.Snippet.Title,
			Description:  it.Snippet.Description,
			Thumbnails:   it.Snippet.Thumbnails,
			ChannelTitle: it.Snippet.ChannelTitle,
			PublishedAt:  it.Snippet.PublishedAt,
			Statistics:   it.Statistics,
		})
	}
	return page, nil
}

// Video returns the full API item for one id, unprojected, so the client sees
// snippet, contentDetails and statistics exactly as the API shapes them.
func (c *Client) Video(ctx context.Context, id string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("id", id)
	var resp videosResponse
	if err := c.get(ctx, "/videos", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, ErrNotFound
	}
	return resp.Items[0], nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	params.Set("key", c.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	// Explicit Accept-Encoding disables net/http transparent gzip, so both
	// encodings are decoded by hand below. The Data API serves br when asked.
	req.Header.Set("Accept-Encoding", "gzip, br")
	client := c.HTTP
	if client == nil {
		client = httpclient.Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
			return fmt.Errorf("youtube api: %s", ae.Error.Message)
		}
		return fmt.Errorf("youtube api: HTTP %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

func clampResults(n int) int {
	if n <= 0 {
		return 10
	}
	if n > 50 {
		return 50
	}
	return n
}
