package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/melomatch/internal/logging"
	"github.com/ewilliams-labs/melomatch/internal/metrics"
)

const upstreamName = "spotify"

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyAlbum struct {
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyTrack struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Album spotifyAlbum `json:"album"`
}

type searchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

// FindArtwork searches for a track by title and artist and returns the URL
// of the first album image. It returns "" when nothing matches.
func (c *Client) FindArtwork(ctx context.Context, name string, artist string) (string, error) {
	start := time.Now()
	artURL, err := c.findArtwork(ctx, name, artist)
	metrics.UpstreamDuration.WithLabelValues(upstreamName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(upstreamName, "failure").Inc()
		return "", err
	}
	metrics.UpstreamRequests.WithLabelValues(upstreamName, "success").Inc()
	return artURL, nil
}

func (c *Client) findArtwork(ctx context.Context, name string, artist string) (string, error) {
	track, found, err := c.searchTrack(ctx, name, artist)
	if err != nil || !found {
		return "", err
	}

	if len(track.Album.Images) == 0 {
		return "", nil
	}
	return track.Album.Images[0].URL, nil
}

func (c *Client) searchTrack(ctx context.Context, title string, artist string) (spotifyTrack, bool, error) {
	searchURL, err := url.Parse(fmt.Sprintf("%s/search", c.baseURL))
	if err != nil {
		return spotifyTrack{}, false, fmt.Errorf("spotify adapter: invalid search url: %w", err)
	}

	normalizedTitle, normalizedArtist := normalizeTitleArtist(title, artist)
	queryTitle := fallbackIfEmpty(normalizedTitle, title)
	queryArtist := fallbackIfEmpty(normalizedArtist, artist)

	query := searchURL.Query()
	query.Set("q", fmt.Sprintf("track:%s artist:%s", queryTitle, queryArtist))
	query.Set("type", "track")
	query.Set("limit", "1")
	searchURL.RawQuery = query.Encode()

	logging.Ctx(ctx).Debug().Str("url", searchURL.String()).Msg("spotify search request")

	if err := c.limiter.Wait(ctx); err != nil {
		return spotifyTrack{}, false, fmt.Errorf("spotify adapter: rate limiter: %w", err)
	}

	searchReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return spotifyTrack{}, false, fmt.Errorf("spotify adapter: failed to create search request: %w", err)
	}
	if err := c.authorize(ctx, searchReq); err != nil {
		return spotifyTrack{}, false, err
	}

	searchResp, err := c.send(searchReq)
	if err != nil {
		return spotifyTrack{}, false, fmt.Errorf("spotify adapter: search request failed: %w", err)
	}
	defer searchResp.Body.Close()

	if searchResp.StatusCode != http.StatusOK {
		return spotifyTrack{}, false, fmt.Errorf("spotify adapter: search status %d", searchResp.StatusCode)
	}

	var searchBody searchResponse
	if err := json.NewDecoder(searchResp.Body).Decode(&searchBody); err != nil {
		return spotifyTrack{}, false, fmt.Errorf("spotify adapter: search decode error: %w", err)
	}

	if len(searchBody.Tracks.Items) == 0 {
		return spotifyTrack{}, false, nil
	}

	return searchBody.Tracks.Items[0], true, nil
}
