// Package flickr is a minimal client for the Flickr photosets REST API.
package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/logging"
	"github.com/hpungsan/funnier/internal/photo"
)

// DefaultBaseURL is the public REST endpoint.
const DefaultBaseURL = "https://api.flickr.com/services/rest"

// perPage is the largest page size the photosets API accepts.
const perPage = 500

// sizeExtras maps the url_* extras to their size labels, smallest first.
var sizeExtras = []struct {
	suffix string
	label  string
}{
	{"s", "Small"},
	{"m", "Medium"},
	{"z", "Medium 640"},
	{"l", "Large"},
	{"b", "Large 1024"},
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// APISecret is carried for completeness; read-only photoset calls do not sign requests.
	APISecret string
	Timeout   time.Duration
	Client    *http.Client
	Logger    *zap.Logger
}

// Client calls flickr.photosets.getInfo and flickr.photosets.getPhotos.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    hc,
		logger:  logging.OrNop(cfg.Logger),
	}
}

// GetInfo returns title, description, update time and photo count of a photoset.
func (c *Client) GetInfo(ctx context.Context, photosetID string) (*photo.SetInfo, error) {
	var resp infoResponse
	if err := c.call(ctx, "flickr.photosets.getInfo", url.Values{"photoset_id": {photosetID}}, &resp); err != nil {
		return nil, err
	}

	ps := resp.Photoset
	count := int(ps.CountPhotos)
	if count == 0 {
		count = int(ps.Photos)
	}
	return &photo.SetInfo{
		Title:       ps.Title.Content,
		Description: ps.Description.Content,
		LastUpdated: time.Unix(int64(ps.DateUpdate), 0).UTC(),
		Count:       count,
	}, nil
}

// GetPhotos returns every photo of the photoset in photoset order,
// following pagination.
func (c *Client) GetPhotos(ctx context.Context, photosetID string) ([]photo.RemotePhoto, error) {
	extras := make([]string, 0, len(sizeExtras)+1)
	for _, e := range sizeExtras {
		extras = append(extras, "url_"+e.suffix)
	}
	extras = append(extras, "tags")

	var photos []photo.RemotePhoto
	for page := 1; ; page++ {
		params := url.Values{
			"photoset_id": {photosetID},
			"extras":      {strings.Join(extras, ",")},
			"per_page":    {strconv.Itoa(perPage)},
			"page":        {strconv.Itoa(page)},
		}

		var resp photosResponse
		if err := c.call(ctx, "flickr.photosets.getPhotos", params, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Photoset.Photo {
			photos = append(photos, p.toRemote())
		}
		if page >= int(resp.Photoset.Pages) {
			break
		}
	}
	return photos, nil
}

// call performs one REST method and decodes the JSON body into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("nojsoncallback", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.NewTransport(method, pkgerrors.Wrap(err, "build request"))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewTransport(method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransport(method, pkgerrors.Wrap(err, "read response"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewTransport(method, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var st status
	if err := json.Unmarshal(body, &st); err != nil {
		return errors.NewTransport(method, pkgerrors.Wrap(err, "decode status"))
	}
	if st.Stat != "ok" {
		return errors.NewTransport(method, fmt.Errorf("api error %d: %s", st.Code, st.Message))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewTransport(method, pkgerrors.Wrap(err, "decode response"))
	}

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
