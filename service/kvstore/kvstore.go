// Package kvstore implements core.KVStore on top of a kvstore.io style REST
// service. Every operation targets one collection, which is created lazily on
// first use.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
	"github.com/go-resty/resty/v2"
	"github.com/pandodao/anchor-store/core"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultEndpoint   = "https://api.kvstore.io"
	DefaultCollection = "wayspot_anchors"
	DefaultAuthHeader = "kvstoreio_api_key"
)

const (
	collectionsPath = "/collections"
	collectionPath  = "/collections/{collection}"
	itemsPath       = "/collections/{collection}/items"
	itemPath        = "/collections/{collection}/items/{key}"

	collectionsKey = "collections"

	// exclusive is the semaphore weight taken by DeleteAllKeys.
	exclusive = math.MaxInt32
)

type Config struct {
	APIKey     string `valid:"required"`
	Endpoint   string `valid:"requrl,required"`
	Collection string `valid:"required"`
	AuthHeader string `valid:"required"`
	// Timeout bounds each request. Zero leaves the transport default.
	Timeout time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultAuthHeader
	}

	return cfg
}

type Client struct {
	cfg    Config
	client *resty.Client
	logger *slog.Logger

	sf singleflight.Group

	// epoch advances on every DeleteAllKeys. The collection is known to exist
	// while ready equals epoch.
	epoch atomic.Uint64
	ready atomic.Uint64

	// DeleteAllKeys takes the whole weight, every other operation one unit,
	// so a delete never overlaps collection creation or item requests.
	sem *semaphore.Weighted
}

var _ core.KVStore = (*Client)(nil)

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: empty api key", core.ErrConfiguration)
	}

	cfg = cfg.withDefaults()
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	logger = logger.With("service", "kvstore", "collection", cfg.Collection)

	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetHeader(cfg.AuthHeader, cfg.APIKey).
		SetLogger(&restyLogger{logger: logger})

	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	c := &Client{
		cfg:    cfg,
		client: client,
		logger: logger,
		sem:    semaphore.NewWeighted(exclusive),
	}

	c.epoch.Store(1)
	return c, nil
}

func (c *Client) Collection() string {
	return c.cfg.Collection
}

func (c *Client) GetValue(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", core.ErrInvalidKey)
	}

	if err := c.acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	if err := c.ensureCollection(ctx); err != nil {
		return "", err
	}

	b, err := c.execute(c.request(ctx).SetPathParam("key", key), http.MethodGet, itemPath)
	if err != nil {
		if !core.IsErrNotFound(err) {
			c.logger.Error("kvstore.GetValue", "key", key, "err", err)
		}

		return "", err
	}

	var body struct {
		Value *string `json:"value"`
	}

	if err := json.Unmarshal(b, &body); err != nil {
		return "", fmt.Errorf("%w: decode value of %q: %w", core.ErrDeserialization, key, err)
	}

	if body.Value == nil {
		return "", fmt.Errorf("%w: value of %q is missing", core.ErrDeserialization, key)
	}

	return *body.Value, nil
}

func (c *Client) SetValue(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", core.ErrInvalidKey)
	}

	if err := c.acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	r := c.request(ctx).
		SetPathParam("key", key).
		SetHeader("Content-Type", "text/plain").
		SetBody(value)

	if _, err := c.execute(r, http.MethodPut, itemPath); err != nil {
		c.logger.Error("kvstore.SetValue", "key", key, "err", err)
		return err
	}

	return nil
}

func (c *Client) GetValues(ctx context.Context) ([]*core.KeyValue, error) {
	if err := c.acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if err := c.ensureCollection(ctx); err != nil {
		return nil, err
	}

	b, err := c.execute(c.request(ctx), http.MethodGet, itemsPath)
	if err != nil {
		c.logger.Error("kvstore.GetValues", "err", err)
		return nil, err
	}

	var values []*core.KeyValue
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("%w: decode items: %w", core.ErrDeserialization, err)
	}

	if values == nil {
		values = []*core.KeyValue{}
	}

	return values, nil
}

// DeleteAllKeys removes the whole collection. It succeeds without a request
// when the collection does not exist.
func (c *Client) DeleteAllKeys(ctx context.Context) error {
	if err := c.acquire(ctx, exclusive); err != nil {
		return err
	}
	defer c.sem.Release(exclusive)

	exists, err := c.collectionExists(ctx)
	if err != nil {
		c.logger.Error("kvstore.collectionExists", "err", err)
		return err
	}

	if exists {
		if _, err := c.execute(c.request(ctx), http.MethodDelete, collectionPath); err != nil && !core.IsErrNotFound(err) {
			c.logger.Error("kvstore.DeleteAllKeys", "err", err)
			return err
		}

		c.logger.Debug("collection deleted")
	}

	c.epoch.Add(1)
	return nil
}

// acquire waits for n units of the collection lock or until ctx is done.
func (c *Client) acquire(ctx context.Context, n int64) error {
	if err := c.sem.Acquire(ctx, n); err != nil {
		return fmt.Errorf("%w: wait for collection lock: %w", core.ErrNetwork, err)
	}

	return nil
}

// ensureCollection creates the collection on first use. Concurrent callers
// share a single in-flight attempt per epoch. The attempt is detached from
// the caller that started it; each caller stops waiting when its own ctx is
// done.
func (c *Client) ensureCollection(ctx context.Context) error {
	epoch := c.epoch.Load()
	if c.ready.Load() == epoch {
		return nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		if c.ready.Load() == epoch {
			return nil, nil
		}

		exists, err := c.collectionExists(flightCtx)
		if err != nil {
			c.logger.Error("kvstore.collectionExists", "err", err)
			return nil, err
		}

		if !exists {
			if err := c.createCollection(flightCtx); err != nil {
				c.logger.Error("kvstore.createCollection", "err", err)
				return nil, err
			}
		}

		// a delete that started meanwhile has advanced epoch, so a stale
		// attempt never marks the new epoch ready.
		c.ready.Store(epoch)
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: ensure collection: %w", core.ErrNetwork, ctx.Err())
	}
}

func (c *Client) collectionExists(ctx context.Context) (bool, error) {
	b, err := c.execute(c.request(ctx), http.MethodGet, collectionsPath)
	if err != nil {
		return false, err
	}

	return hasCollection(b, c.cfg.Collection)
}

func (c *Client) createCollection(ctx context.Context) error {
	r := c.request(ctx).SetBody(map[string]string{"collection": c.cfg.Collection})

	_, err := c.execute(r, http.MethodPost, collectionsPath)

	var pe *core.ProtocolError
	if errors.As(err, &pe) && pe.StatusCode == http.StatusConflict {
		c.logger.Debug("collection already created")
		return nil
	}

	if err == nil {
		c.logger.Debug("collection created")
	}

	return err
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetPathParam("collection", c.cfg.Collection)
}

func (c *Client) execute(r *resty.Request, method, path string) ([]byte, error) {
	resp, err := r.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", core.ErrNetwork, method, path, err)
	}

	if !resp.IsSuccess() {
		return nil, &core.ProtocolError{
			Method:     method,
			URL:        resp.Request.URL,
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String(), 256),
		}
	}

	return resp.Body(), nil
}

// hasCollection reports whether the list collections response contains name.
// The collections field is normally an object keyed by collection name; a
// list of names or of {"collection": name} objects is accepted as well.
func hasCollection(b []byte, name string) (bool, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(b, &body); err != nil {
		return false, fmt.Errorf("%w: decode collections: %w", core.ErrDeserialization, err)
	}

	raw, ok := body[collectionsKey]
	if !ok {
		return false, nil
	}

	var byName map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byName); err == nil {
		_, ok := byName[name]
		return ok, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return false, fmt.Errorf("%w: decode collections: %w", core.ErrDeserialization, err)
	}

	for _, item := range list {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s == name {
				return true, nil
			}

			continue
		}

		var obj struct {
			Collection string `json:"collection"`
			Name       string `json:"name"`
		}

		if err := json.Unmarshal(item, &obj); err == nil && (obj.Collection == name || obj.Name == name) {
			return true, nil
		}
	}

	return false, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n] + "..."
}
