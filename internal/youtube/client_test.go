package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type fakeAPI struct {
	calls atomic.Int64
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	q := r.URL.Query()
	if q.Get("key") != "test-key" {
		http.Error(w, `{"error":"bad key"}`, http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/search":
		switch {
		case q.Get("type") == "channel" && q.Get("q") == "@acme":
			writeJSON(w, `{"items":[{"snippet":{"channelId":"UChandle"}}]}`)
		case q.Get("type") == "channel" && q.Get("q") == "acmecustom":
			writeJSON(w, `{"items":[{"snippet":{"channelId":"UCcustom"}}]}`)
		case q.Get("type") == "video" && q.Get("channelId") == "UCacme":
			if q.Get("order") != "date" {
				http.Error(w, "expected order=date", http.StatusBadRequest)
				return
			}
			writeJSON(w, `{"items":[{"id":{"videoId":"v1"}},{"id":{"videoId":"v2"}}]}`)
		default:
			writeJSON(w, `{"items":[]}`)
		}
	case "/channels":
		switch {
		case q.Get("forUsername") == "legacy":
			writeJSON(w, `{"items":[{"id":"UCuser"}]}`)
		case q.Get("id") == "UCacme":
			writeJSON(w, `{"items":[{"id":"UCacme","snippet":{"title":"Acme","description":"d","customUrl":"@acme",
				"thumbnails":{"default":{"url":"https://img/default.jpg"},"high":{"url":"https://img/high.jpg"}}},
				"statistics":{"subscriberCount":"1500000","videoCount":"320"}}]}`)
		default:
			writeJSON(w, `{"items":[]}`)
		}
	case "/videos":
		var items []string
		for _, id := range strings.Split(q.Get("id"), ",") {
			if id == "missing" {
				continue
			}
			items = append(items, `{"id":"`+id+`","snippet":{"title":"Video `+id+`","publishedAt":"2024-05-01T10:00:00Z",
				"channelTitle":"Acme","thumbnails":{"medium":{"url":"https://img/`+id+`-m.jpg"}}},
				"statistics":{"viewCount":"12345","likeCount":"42"},"contentDetails":{"duration":"PT1H2M30S"}}`)
		}
		writeJSON(w, `{"items":[`+strings.Join(items, ",")+`]}`)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, body string) {
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}), api
}

func TestResolveChannelID(t *testing.T) {
	client, _ := newTestClient(t)

	cases := map[string]string{
		"https://www.youtube.com/channel/UCdirect-id":    "UCdirect-id",
		"https://youtube.com/@acme":                      "UChandle",
		"https://www.youtube.com/c/acmecustom":           "UCcustom",
		"https://www.youtube.com/user/legacy":            "UCuser",
		"  UCbare_id  ":                                  "UCbare_id",
		"https://www.youtube.com/channel/UCx?view=about": "UCx",
	}
	for in, want := range cases {
		got, err := client.ResolveChannelID(context.Background(), in)
		if err != nil {
			t.Fatalf("resolve %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("resolve %q: expected %s, got %s", in, want, got)
		}
	}
}

func TestResolveChannelIDNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	for _, in := range []string{"https://youtube.com/@nobody", "https://example.com/acme", "not a channel"} {
		if _, err := client.ResolveChannelID(context.Background(), in); !errors.Is(err, ErrChannelNotFound) {
			t.Fatalf("resolve %q: expected ErrChannelNotFound, got %v", in, err)
		}
	}
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.ResolveChannelID(context.Background(), "UCabc"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := client.LatestVideos(context.Background(), "UCabc", 3); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestChannelInfo(t *testing.T) {
	client, _ := newTestClient(t)

	info, err := client.ChannelInfo(context.Background(), "UCacme")
	if err != nil {
		t.Fatalf("channel info: %v", err)
	}
	if info.ThumbnailURL != "https://img/high.jpg" {
		t.Fatalf("expected high thumbnail, got %s", info.ThumbnailURL)
	}
	if info.SubscriberCount != "1.5M" || info.VideoCount != "320" {
		t.Fatalf("unexpected counts %+v", info)
	}

	if _, err := client.ChannelInfo(context.Background(), "UCgone"); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestLatestVideos(t *testing.T) {
	client, _ := newTestClient(t)

	videos, err := client.LatestVideos(context.Background(), "UCacme", 0)
	if err != nil {
		t.Fatalf("latest videos: %v", err)
	}
	if len(videos) != 2 || videos[0].ID != "v1" {
		t.Fatalf("unexpected videos %+v", videos)
	}
	v := videos[0]
	if v.Duration != "1:02:30" || v.ViewCount != "12.3K" || v.LikeCount != "42" {
		t.Fatalf("unexpected formatting %+v", v)
	}
	if v.ThumbnailURL != "https://img/v1-m.jpg" {
		t.Fatalf("expected medium thumbnail fallback, got %s", v.ThumbnailURL)
	}

	empty, err := client.LatestVideos(context.Background(), "UCquiet", 5)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no videos, got %v err=%v", empty, err)
	}
}

func TestVideoDetails(t *testing.T) {
	client, _ := newTestClient(t)

	v, err := client.VideoDetails(context.Background(), "abc")
	if err != nil {
		t.Fatalf("video details: %v", err)
	}
	if v.Title != "Video abc" || v.ChannelTitle != "Acme" {
		t.Fatalf("unexpected video %+v", v)
	}
	// only high and default thumbnails are considered for single videos
	if v.ThumbnailURL != "" {
		t.Fatalf("expected no thumbnail, got %s", v.ThumbnailURL)
	}

	if _, err := client.VideoDetails(context.Background(), "missing"); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestChannelOverview(t *testing.T) {
	client, _ := newTestClient(t)

	ov, err := client.ChannelOverview(context.Background(), "https://www.youtube.com/channel/UCacme", 2)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Channel.Title != "Acme" || len(ov.Videos) != 2 {
		t.Fatalf("unexpected overview %+v", ov)
	}

	data, err := json.Marshal(ov)
	if err != nil {
		t.Fatalf("marshal overview: %v", err)
	}
	if !strings.Contains(string(data), `"subscriber_count":"1.5M"`) {
		t.Fatalf("unexpected json %s", data)
	}
}

func TestAPIErrorStatus(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	client := NewClient(Config{APIKey: "wrong", BaseURL: srv.URL})
	_, err := client.ChannelInfo(context.Background(), "UCacme")
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("expected status error, got %v", err)
	}
}
