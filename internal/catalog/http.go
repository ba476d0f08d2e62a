package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maxBodyBytes        = 1 << 20
	defaultFetchTimeout = 5 * time.Second
)

type httpCatalog struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	sfg     singleflight.Group
	logger  *zap.Logger
}

// NewHTTP reads promotions from the storefront REST backend. Calls go
// through a circuit breaker; concurrent identical requests share one call.
func NewHTTP(baseURL string, httpClient *http.Client, logger *zap.Logger) (port.PromotionCatalog, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("url.Parse: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url[%s] is not absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &httpCatalog{
		baseURL: u,
		http:    httpClient,
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "promotion-catalog",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a caller giving up says nothing about the catalog
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return c, nil
}

func (c *httpCatalog) ActivePromotions(ctx context.Context) ([]domain.Promotion, error) {
	body, err := c.get(ctx, &url.URL{Path: "/api/promotions", RawQuery: "active=true"})
	if err != nil {
		return nil, err
	}

	var dtos []promotionDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("json.Unmarshal promotions: %w", err)
	}

	promotions := make([]domain.Promotion, 0, len(dtos))
	for _, dto := range dtos {
		promo, err := mapPromotionDTOToDomain(dto)
		if err != nil {
			c.logger.Warn("invalid promotion skipped", zap.String("promotion_id", dto.ID), zap.Error(err))
			continue
		}
		promotions = append(promotions, promo)
	}

	return promotions, nil
}

func (c *httpCatalog) PromotionProducts(ctx context.Context, promotionID string) ([]string, error) {
	if promotionID == "" {
		return nil, fmt.Errorf("promotionID is empty")
	}

	body, err := c.get(ctx, &url.URL{
		Path:    "/api/promotions/" + promotionID + "/products",
		RawPath: "/api/promotions/" + url.PathEscape(promotionID) + "/products",
	})
	if err != nil {
		return nil, err
	}

	var dtos []productDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("json.Unmarshal products: %w", err)
	}

	ids := make([]string, 0, len(dtos))
	for _, dto := range dtos {
		if dto.ID != "" {
			ids = append(ids, dto.ID)
		}
	}

	return ids, nil
}

// get shares one in-flight request per URL between callers. The request is
// detached from the caller that started it and bounded by the client
// timeout, so one caller's deadline does not fail the others.
func (c *httpCatalog) get(ctx context.Context, rel *url.URL) ([]byte, error) {
	target := c.baseURL.ResolveReference(rel).String()

	results := c.sfg.DoChan(target, func() (any, error) {
		fetchCtx, cancel := c.fetchContext(ctx)
		defer cancel()

		return c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(fetchCtx, target)
		})
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("GET %s: %w", target, ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *httpCatalog) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.http.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (c *httpCatalog) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", target, resp.StatusCode)
	}

	return body, nil
}
