package podcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/recondo/internal/models"
)

const lookupEndpoint = "https://itunes.apple.com/lookup"

// ParseEpisodeURL extracts the podcast and episode identity from an Apple
// Podcasts page URL: /{country}/podcast/{slug}/id{podcastId}?i={episodeId}
func ParseEpisodeURL(rawURL string) (*models.PodcastEpisodeRef, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid podcast url: %w", err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	ref := &models.PodcastEpisodeRef{}

	for i, segment := range segments {
		if strings.HasPrefix(segment, "id") {
			id, err := strconv.ParseInt(segment[2:], 10, 64)
			if err != nil {
				continue
			}
			ref.PodcastID = id
			if i >= 1 {
				ref.Slug = segments[i-1]
			}
			if i >= 3 {
				ref.Country = segments[0]
			}
		}
	}

	if ref.PodcastID == 0 {
		return nil, fmt.Errorf("podcast id not found in %s", rawURL)
	}

	if episodeParam := u.Query().Get("i"); episodeParam != "" {
		episodeID, err := strconv.ParseInt(episodeParam, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid episode id %q: %w", episodeParam, err)
		}
		ref.EpisodeID = episodeID
	}
	if ref.EpisodeID == 0 {
		return nil, fmt.Errorf("episode id (?i=) not found in %s", rawURL)
	}

	return ref, nil
}

// lookupResponse is the iTunes lookup API envelope
type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

type lookupResult struct {
	Kind             string  `json:"kind"`
	WrapperType      string  `json:"wrapperType"`
	TrackID          int64   `json:"trackId"`
	TrackName        string  `json:"trackName"`
	CollectionName   string  `json:"collectionName"`
	ArtistName       string  `json:"artistName"`
	PrimaryGenreName string  `json:"primaryGenreName"`
	TrackTimeMillis  int64   `json:"trackTimeMillis"`
	ReleaseDate      string  `json:"releaseDate"`
	EpisodeURL       string  `json:"episodeUrl"`
	FeedURL          string  `json:"feedUrl"`
	EpisodeGUID      string  `json:"episodeGuid"`
}

// lookupClient resolves episode metadata through the iTunes lookup API
type lookupClient struct {
	httpClient *http.Client
	endpoint   string
}

func newLookupClient(httpClient *http.Client) *lookupClient {
	return &lookupClient{httpClient: httpClient, endpoint: lookupEndpoint}
}

// Lookup fetches the podcast record and locates the episode. The API returns
// the podcast followed by its most recent episodes; an episode outside the
// first batch cannot be resolved.
func (c *lookupClient) Lookup(ctx context.Context, ref *models.PodcastEpisodeRef) (*models.PodcastMetadata, error) {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(ref.PodcastID, 10))
	query.Set("media", "podcast")
	query.Set("entity", "podcastEpisode")
	query.Set("limit", "200")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("itunes lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes lookup returned status %d", resp.StatusCode)
	}

	var parsed lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("itunes lookup decode failed: %w", err)
	}

	meta := &models.PodcastMetadata{}
	var episode *lookupResult
	for i := range parsed.Results {
		result := &parsed.Results[i]
		switch {
		case result.WrapperType == "track" && result.Kind == "podcast":
			meta.PodcastName = result.CollectionName
			if meta.PodcastName == "" {
				meta.PodcastName = result.TrackName
			}
			meta.Artist = result.ArtistName
			meta.Genre = result.PrimaryGenreName
			meta.FeedURL = result.FeedURL
		case result.Kind == "podcast-episode" && result.TrackID == ref.EpisodeID:
			episode = result
		}
	}

	if episode == nil {
		return nil, fmt.Errorf("episode %d not found in the %d most recent episodes of podcast %d; older episodes are outside the lookup window",
			ref.EpisodeID, 200, ref.PodcastID)
	}

	meta.EpisodeTitle = episode.TrackName
	meta.DurationMs = episode.TrackTimeMillis
	meta.AudioURL = episode.EpisodeURL
	meta.EpisodeGUID = episode.EpisodeGUID
	if meta.FeedURL == "" {
		meta.FeedURL = episode.FeedURL
	}
	if episode.ReleaseDate != "" {
		if ts, err := time.Parse(time.RFC3339, episode.ReleaseDate); err == nil {
			meta.ReleaseDate = &ts
		}
	}

	if meta.AudioURL == "" {
		return nil, fmt.Errorf("episode %d of podcast %d carries no audio url", ref.EpisodeID, ref.PodcastID)
	}

	return meta, nil
}
