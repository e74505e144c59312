// Package youtube reads channel and video data from the YouTube Data API v3
// for the portal's public video page.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL    = "https://www.googleapis.com/youtube/v3"
	DefaultVideoLimit = 12
	maxVideoLimit     = 50
)

var (
	ErrMissingAPIKey   = errors.New("youtube api key is not configured")
	ErrChannelNotFound = errors.New("youtube channel not found")
	ErrVideoNotFound   = errors.New("youtube video not found")
)

var (
	channelPathPattern = regexp.MustCompile(`youtube\.com/channel/(UC[\w-]+)`)
	handlePattern      = regexp.MustCompile(`youtube\.com/@([\w-]+)`)
	customPathPattern  = regexp.MustCompile(`youtube\.com/c/([\w-]+)`)
	userPathPattern    = regexp.MustCompile(`youtube\.com/user/([\w-]+)`)
	bareChannelPattern = regexp.MustCompile(`^UC[\w-]+$`)
)

type Channel struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ThumbnailURL    string `json:"thumbnail_url"`
	SubscriberCount string `json:"subscriber_count"`
	VideoCount      string `json:"video_count"`
	CustomURL       string `json:"custom_url,omitempty"`
}

type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
	PublishedAt  string `json:"published_at"`
	ViewCount    string `json:"view_count"`
	LikeCount    string `json:"like_count"`
	Duration     string `json:"duration"`
	ChannelTitle string `json:"channel_title"`
}

// Overview is everything the public video page renders for one channel.
type Overview struct {
	Channel Channel `json:"channel"`
	Videos  []Video `json:"videos"`
}

// Service is implemented by Client and CachedClient.
type Service interface {
	ResolveChannelID(ctx context.Context, channelURL string) (string, error)
	ChannelInfo(ctx context.Context, channelID string) (Channel, error)
	LatestVideos(ctx context.Context, channelID string, limit int) ([]Video, error)
	VideoDetails(ctx context.Context, videoID string) (Video, error)
	ChannelOverview(ctx context.Context, channelURL string, limit int) (Overview, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ResolveChannelID accepts /channel/UC..., /@handle, /c/name and /user/name
// URLs as well as a bare channel id.
func (c *Client) ResolveChannelID(ctx context.Context, channelURL string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	raw := strings.TrimSpace(channelURL)

	if m := channelPathPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if m := handlePattern.FindStringSubmatch(raw); m != nil {
		if id, err := c.searchChannel(ctx, "@"+m[1]); err != nil || id != "" {
			return id, err
		}
	}
	if m := customPathPattern.FindStringSubmatch(raw); m != nil {
		if id, err := c.searchChannel(ctx, m[1]); err != nil || id != "" {
			return id, err
		}
	}
	if m := userPathPattern.FindStringSubmatch(raw); m != nil {
		var resp channelListResponse
		if err := c.get(ctx, "channels", url.Values{"part": {"id"}, "forUsername": {m[1]}}, &resp); err != nil {
			return "", err
		}
		if len(resp.Items) > 0 {
			return resp.Items[0].ID, nil
		}
	}
	if bareChannelPattern.MatchString(raw) {
		return raw, nil
	}
	return "", ErrChannelNotFound
}

func (c *Client) searchChannel(ctx context.Context, query string) (string, error) {
	var resp searchResponse
	params := url.Values{"part": {"snippet"}, "type": {"channel"}, "q": {query}}
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].Snippet.ChannelID, nil
}

func (c *Client) ChannelInfo(ctx context.Context, channelID string) (Channel, error) {
	if c.apiKey == "" {
		return Channel{}, ErrMissingAPIKey
	}
	var resp channelListResponse
	params := url.Values{"part": {"snippet,statistics"}, "id": {channelID}}
	if err := c.get(ctx, "channels", params, &resp); err != nil {
		return Channel{}, err
	}
	if len(resp.Items) == 0 {
		return Channel{}, ErrChannelNotFound
	}

	item := resp.Items[0]
	return Channel{
		ID:              item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		ThumbnailURL:    item.Snippet.Thumbnails.pick("high", "default"),
		SubscriberCount: FormatCount(item.Statistics.SubscriberCount),
		VideoCount:      FormatCount(item.Statistics.VideoCount),
		CustomURL:       item.Snippet.CustomURL,
	}, nil
}

// LatestVideos returns the channel's newest uploads, newest first. A limit
// outside 1..50 uses DefaultVideoLimit.
func (c *Client) LatestVideos(ctx context.Context, channelID string, limit int) ([]Video, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if limit <= 0 || limit > maxVideoLimit {
		limit = DefaultVideoLimit
	}

	var search searchResponse
	params := url.Values{
		"part":       {"id"},
		"channelId":  {channelID},
		"order":      {"date"},
		"type":       {"video"},
		"maxResults": {fmt.Sprint(limit)},
	}
	if err := c.get(ctx, "search", params, &search); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return []Video{}, nil
	}
	return c.videos(ctx, ids, "high", "medium", "default")
}

func (c *Client) VideoDetails(ctx context.Context, videoID string) (Video, error) {
	if c.apiKey == "" {
		return Video{}, ErrMissingAPIKey
	}
	videos, err := c.videos(ctx, []string{videoID}, "high", "default")
	if err != nil {
		return Video{}, err
	}
	if len(videos) == 0 {
		return Video{}, ErrVideoNotFound
	}
	return videos[0], nil
}

// ChannelOverview resolves the channel URL and then loads channel info and
// latest videos in parallel.
func (c *Client) ChannelOverview(ctx context.Context, channelURL string, limit int) (Overview, error) {
	return overview(ctx, c, channelURL, limit)
}

func overview(ctx context.Context, svc Service, channelURL string, limit int) (Overview, error) {
	channelID, err := svc.ResolveChannelID(ctx, channelURL)
	if err != nil {
		return Overview{}, err
	}

	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := svc.ChannelInfo(gctx, channelID)
		if err != nil {
			return fmt.Errorf("channel info: %w", err)
		}
		out.Channel = info
		return nil
	})
	g.Go(func() error {
		videos, err := svc.LatestVideos(gctx, channelID, limit)
		if err != nil {
			return fmt.Errorf("latest videos: %w", err)
		}
		out.Videos = videos
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

func (c *Client) videos(ctx context.Context, ids []string, thumbnailOrder ...string) ([]Video, error) {
	var resp videoListResponse
	params := url.Values{"part": {"snippet,statistics,contentDetails"}, "id": {strings.Join(ids, ",")}}
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return nil, err
	}

	out := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, Video{
			ID:           item.ID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ThumbnailURL: item.Snippet.Thumbnails.pick(thumbnailOrder...),
			PublishedAt:  item.Snippet.PublishedAt,
			ViewCount:    FormatCount(item.Statistics.ViewCount),
			LikeCount:    FormatCount(item.Statistics.LikeCount),
			Duration:     FormatDuration(item.ContentDetails.Duration),
			ChannelTitle: item.Snippet.ChannelTitle,
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, resource string, params url.Values, dst any) error {
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + "/" + resource + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build youtube request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("youtube %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("youtube %s: status %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode youtube %s: %w", resource, err)
	}
	return nil
}

type thumbnails map[string]struct {
	URL string `json:"url"`
}

func (t thumbnails) pick(order ...string) string {
	for _, size := range order {
		if thumb, ok := t[size]; ok && thumb.URL != "" {
			return thumb.URL
		}
	}
	return ""
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			ChannelID string `json:"channelId"`
		} `json:"snippet"`
	} `json:"items"`
}

type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string     `json:"title"`
			Description string     `json:"description"`
			CustomURL   string     `json:"customUrl"`
			Thumbnails  thumbnails `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string     `json:"title"`
			Description  string     `json:"description"`
			PublishedAt  string     `json:"publishedAt"`
			ChannelTitle string     `json:"channelTitle"`
			Thumbnails   thumbnails `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
			LikeCount string `json:"likeCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}
