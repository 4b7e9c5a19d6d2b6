package smartsheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production sheet service endpoint.
	DefaultBaseURL = "https://api.smartsheet.com/2.0"

	// MaxBatchRows is the service's hard limit on row operations per write call.
	MaxBatchRows = 500

	// rateLimitRetryDelay is how long to wait before the single retry on 429.
	rateLimitRetryDelay = 3 * time.Second
)

// Client is a thin HTTP wrapper over the sheet service REST API. Column titles
// are cached per sheet for the lifetime of the client; every other call goes
// to the network.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *zap.Logger
	pageSize     int
	readTimeout  time.Duration
	writeTimeout time.Duration

	titleMu sync.Mutex
	titles  map[int64]map[int64]string
}

// NewClient creates a sheet service client with default timeouts
// (60s reads, 20s writes) and a conservative request rate limit.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      baseURL,
		token:        token,
		httpClient:   &http.Client{},
		limiter:      rate.NewLimiter(rate.Limit(5), 5),
		logger:       logger,
		pageSize:     500,
		readTimeout:  60 * time.Second,
		writeTimeout: 20 * time.Second,
		titles:       make(map[int64]map[int64]string),
	}
}

// WithHTTPClient sets the underlying HTTP client and returns the modified client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithPageSize sets the list page size and returns the modified client.
func (c *Client) WithPageSize(size int) *Client {
	if size > 0 {
		c.pageSize = size
	}
	return c
}

// WithRateLimit sets the request rate limit and returns the modified client.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
	return c
}

// WithTimeouts sets the read and write timeouts and returns the modified client.
func (c *Client) WithTimeouts(read, write time.Duration) *Client {
	if read > 0 {
		c.readTimeout = read
	}
	if write > 0 {
		c.writeTimeout = write
	}
	return c
}

// FetchSheet retrieves a single page of a sheet.
func (c *Client) FetchSheet(ctx context.Context, sheetID int64, page, pageSize int) (*Sheet, error) {
	params := url.Values{}
	params.Set("include", "rowPermalink")
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sheets/%d", sheetID), params, nil, c.readTimeout)
	if err != nil {
		return nil, err
	}

	var sheet Sheet
	if err := json.Unmarshal(body, &sheet); err != nil {
		return nil, fmt.Errorf("failed to decode sheet %d: %w", sheetID, err)
	}
	return &sheet, nil
}

// FetchAllRows retrieves every row of a sheet, following pagination until a
// short page is returned. Row counts in practice fit one page, but larger
// sheets must still come back complete.
func (c *Client) FetchAllRows(ctx context.Context, sheetID int64) ([]Row, error) {
	rows := make([]Row, 0)
	page := 1

	for {
		sheet, err := c.FetchSheet(ctx, sheetID, page, c.pageSize)
		if err != nil {
			return nil, err
		}

		rows = append(rows, sheet.Rows...)

		c.logger.Debug("Fetched sheet page",
			zap.Int64("sheetId", sheetID),
			zap.Int("page", page),
			zap.Int("rowsInPage", len(sheet.Rows)),
			zap.Int("rowsTotal", len(rows)))

		if len(sheet.Rows) < c.pageSize {
			break
		}
		page++
	}

	return rows, nil
}

// ColumnTitles returns a columnId -> title mapping for the sheet, using a
// pageSize=1 request since only the column metadata is needed. Results are
// cached for the lifetime of the client.
func (c *Client) ColumnTitles(ctx context.Context, sheetID int64) (map[int64]string, error) {
	c.titleMu.Lock()
	if cached, ok := c.titles[sheetID]; ok {
		c.titleMu.Unlock()
		return cached, nil
	}
	c.titleMu.Unlock()

	sheet, err := c.FetchSheet(ctx, sheetID, 1, 1)
	if err != nil {
		return nil, err
	}

	titles := make(map[int64]string, len(sheet.Columns))
	for _, col := range sheet.Columns {
		titles[col.ID] = col.Title
	}

	c.titleMu.Lock()
	c.titles[sheetID] = titles
	c.titleMu.Unlock()

	return titles, nil
}

// InsertRows issues one POST /sheets/{id}/rows call for the given rows. The
// caller is responsible for chunking to MaxBatchRows; on 429 the call waits
// and retries exactly once.
func (c *Client) InsertRows(ctx context.Context, sheetID int64, rows []RowWrite) error {
	if len(rows) == 0 {
		return nil
	}
	return c.writeRows(ctx, http.MethodPost, sheetID, rows)
}

// UpdateRows issues one PUT /sheets/{id}/rows call for the given rows, with
// the same chunking contract and 429 handling as InsertRows.
func (c *Client) UpdateRows(ctx context.Context, sheetID int64, rows []RowWrite) error {
	if len(rows) == 0 {
		return nil
	}
	return c.writeRows(ctx, http.MethodPut, sheetID, rows)
}

// writeRows performs a single batch write with one delayed retry on 429.
func (c *Client) writeRows(ctx context.Context, method string, sheetID int64, rows []RowWrite) error {
	if len(rows) > MaxBatchRows {
		return fmt.Errorf("batch of %d rows exceeds service limit of %d", len(rows), MaxBatchRows)
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode row batch: %w", err)
	}

	path := fmt.Sprintf("/sheets/%d/rows", sheetID)

	_, err = c.do(ctx, method, path, nil, payload, c.writeTimeout)
	if err != nil && IsRateLimited(err) {
		c.logger.Warn("Rate limited by sheet service, retrying once",
			zap.Int64("sheetId", sheetID),
			zap.String("method", method),
			zap.Duration("delay", rateLimitRetryDelay))

		select {
		case <-time.After(rateLimitRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}

		_, err = c.do(ctx, method, path, nil, payload, c.writeTimeout)
	}
	if err != nil {
		return err
	}

	c.logger.Info("Wrote row batch",
		zap.Int64("sheetId", sheetID),
		zap.String("method", method),
		zap.Int("rows", len(rows)))
	return nil
}

// do executes a single HTTP request and returns the response body. Non-2xx
// responses become APIError values.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, timeout time.Duration) ([]byte, error) {
	if c.token == "" {
		return nil, fmt.Errorf("smartsheet access token is not set")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sheet service request",
		zap.String("method", method),
		zap.String("url", fullURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheet service %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Method:     method,
			SheetID:    sheetIDFromPath(path),
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), 300),
		}
	}

	return respBody, nil
}

// sheetIDFromPath extracts the sheet identifier from an API path for error
// reporting. Returns 0 when the path has no numeric segment.
func sheetIDFromPath(path string) int64 {
	var id int64
	fmt.Sscanf(path, "/sheets/%d", &id)
	return id
}

// truncate limits s to n bytes for log and error output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
