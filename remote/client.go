package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Remote Store Client
//
// The backend is an opaque row-oriented service: per-table select (equality
// filters plus ordering), insert, update, upsert, delete; an rpc call style
// for privilege-checked stored procedures; and an object-storage upload
// returning a content path convertible to a public URL. Delivery is
// at-least-once, so every mutation the core issues must be idempotent.
//
// Each request carries the client API key and, when signed in, the session
// bearer token. Responses are classified into the error taxonomy in
// errors.go; callers branch on the class, never on raw status codes.
// ============================================================================

// defaultTimeout bounds a single remote call when the caller's context has
// no earlier deadline.
const defaultTimeout = 30 * time.Second

// Client talks to the remote row store. Construct with NewClient and share
// freely; all methods are safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	session    SessionProvider
}

// NewClient builds a client for the service at baseURL. session may not be
// nil; use a signed-out TokenSession for anonymous reads.
func NewClient(baseURL, apiKey string, session SessionProvider) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		session:    session,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Filter is an equality predicate on one column. The operation vocabulary
// only guarantees equality filters, which is all the core needs.
type Filter struct {
	Column string      `json:"column"`
	Value  interface{} `json:"value"`
}

// Eq builds an equality filter.
func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Value: value}
}

// Order describes result ordering for Select.
type Order struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// selectRequest is the wire shape of a select call.
type selectRequest struct {
	Filters []Filter `json:"filters,omitempty"`
	Order   *Order   `json:"order,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// rowsResponse wraps returned rows; Count is populated for count-only selects.
type rowsResponse struct {
	Rows  json.RawMessage `json:"rows"`
	Count int             `json:"count"`
}

// Select fetches rows from table matching all filters, decoded into out
// (a pointer to a slice).
func (c *Client) Select(ctx context.Context, table string, filters []Filter, order *Order, limit int, out interface{}) error {
	req := selectRequest{Filters: filters, Order: order, Limit: limit}
	resp, err := c.do(ctx, "select "+table, http.MethodPost, c.tableURL(table, "select"), req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Rows, out); err != nil {
		return serr.Wrap(err, "failed to decode rows from "+table)
	}
	return nil
}

// SelectOne fetches exactly one row into out. A missing row is a NotFound
// classified error so callers can branch with IsNotFound.
func (c *Client) SelectOne(ctx context.Context, table string, filters []Filter, out interface{}) error {
	var rows []json.RawMessage
	if err := c.Select(ctx, table, filters, nil, 1, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return &Error{Kind: KindNotFound, Op: "select one " + table}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rows[0], out); err != nil {
		return serr.Wrap(err, "failed to decode row from "+table)
	}
	return nil
}

// Count returns the number of rows matching the filters without
// transferring them.
func (c *Client) Count(ctx context.Context, table string, filters []Filter) (int, error) {
	req := selectRequest{Filters: filters}
	resp, err := c.do(ctx, "count "+table, http.MethodPost, c.tableURL(table, "count"), req)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Insert adds one row. A duplicate primary key classifies as Conflict.
func (c *Client) Insert(ctx context.Context, table string, row interface{}) error {
	_, err := c.do(ctx, "insert "+table, http.MethodPost, c.tableURL(table, "insert"), row)
	return err
}

// updateRequest is the wire shape of an update call.
type updateRequest struct {
	Filters []Filter    `json:"filters"`
	Values  interface{} `json:"values"`
}

// Update rewrites the rows matching filters. A zero-row match classifies
// as NotFound so callers can fall back to Insert.
func (c *Client) Update(ctx context.Context, table string, filters []Filter, values interface{}) error {
	req := updateRequest{Filters: filters, Values: values}
	_, err := c.do(ctx, "update "+table, http.MethodPost, c.tableURL(table, "update"), req)
	return err
}

// Upsert inserts the row or overwrites the existing one with the same
// primary key. This is the true idempotent write primitive; prefer it over
// exists-then-insert wherever the backend supports it.
func (c *Client) Upsert(ctx context.Context, table string, row interface{}) error {
	_, err := c.do(ctx, "upsert "+table, http.MethodPost, c.tableURL(table, "upsert"), row)
	return err
}

// deleteRequest is the wire shape of a delete call.
type deleteRequest struct {
	Filters []Filter `json:"filters"`
}

// Delete removes the rows matching filters. Deleting nothing is success —
// the backend treats delete as idempotent and so does the core.
func (c *Client) Delete(ctx context.Context, table string, filters []Filter) error {
	req := deleteRequest{Filters: filters}
	_, err := c.do(ctx, "delete "+table, http.MethodPost, c.tableURL(table, "delete"), req)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return err
}

// RPC invokes a named stored procedure. Used for cross-cutting mutations
// the backend privilege-checks itself (comment edits, for example); an
// authorization rejection surfaces as KindAuthorization.
func (c *Client) RPC(ctx context.Context, fn string, params interface{}, out interface{}) error {
	resp, err := c.do(ctx, "rpc "+fn, http.MethodPost, c.baseURL+"/v1/rpc/"+url.PathEscape(fn), params)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Rows) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Rows, out); err != nil {
		return serr.Wrap(err, "failed to decode rpc result from "+fn)
	}
	return nil
}

// uploadResponse is returned by the storage API.
type uploadResponse struct {
	Path string `json:"path"`
}

// UploadObject stores a binary object and returns its content path.
// Uploads use the object path as the key, so re-uploading the same path is
// an overwrite, keeping publish retries idempotent.
func (c *Client) UploadObject(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	target := c.baseURL + "/v1/storage/" + url.PathEscape(bucket) + "/" + path

	httpReq, err := c.newRequest(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: KindTransient, Op: "upload " + bucket, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode, Op: "upload " + bucket}
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", serr.Wrap(err, "failed to decode upload response")
	}
	if ur.Path == "" {
		ur.Path = path
	}
	return ur.Path, nil
}

// PublicURL converts a storage content path to its public URL.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + "/v1/storage/public/" + url.PathEscape(bucket) + "/" + path
}

func (c *Client) tableURL(table, op string) string {
	return c.baseURL + "/v1/tables/" + url.PathEscape(table) + "/" + op
}

// newRequest builds a request carrying the API key and, when signed in,
// the session bearer token. The token is read fresh per request — session
// validity is never assumed across calls.
func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create remote request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if token := c.session.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends a JSON request and classifies the response. op names the
// operation for error context.
func (c *Client) do(ctx context.Context, op, method, target string, payload interface{}) (*rowsResponse, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, serr.Wrap(err, "failed to marshal request for "+op)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Context cancellation and network failures both land here;
		// both are retry-or-abandon decisions for the caller.
		return nil, &Error{Kind: KindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode, Op: op}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Err: err}
	}

	rr := &rowsResponse{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, rr); err != nil {
			return nil, serr.Wrap(err, fmt.Sprintf("failed to decode response for %s", op))
		}
	}
	return rr, nil
}
