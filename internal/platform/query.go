package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Direction is a sort direction for Query.Order.
type Direction bool

const (
	Asc  Direction = false
	Desc Direction = true
)

// Query builds a request against one table under /rest/v1. Requests carry
// the current access token, so the platform only exposes the signed-in
// user's rows.
type Query struct {
	c      *Client
	table  string
	params url.Values
}

func newQuery(c *Client, table string) *Query {
	return &Query{c: c, table: table, params: url.Values{}}
}

// Select limits the returned columns ("*" for all).
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", columns)
	return q
}

// Eq keeps rows whose column equals value.
func (q *Query) Eq(column, value string) *Query {
	q.params.Set(column, "eq."+value)
	return q
}

// Order sorts by column.
func (q *Query) Order(column string, dir Direction) *Query {
	suffix := ".asc"
	if dir == Desc {
		suffix = ".desc"
	}
	q.params.Set("order", column+suffix)
	return q
}

// Find runs the query and decodes the matching rows into dst, which must be
// a pointer to a slice.
func (q *Query) Find(ctx context.Context, dst any) error {
	token, err := q.c.Auth.accessToken(ctx)
	if err != nil {
		return err
	}
	return q.c.do(ctx, request{
		method: http.MethodGet,
		path:   q.path(),
		query:  q.params,
		token:  token,
	}, dst)
}

// Insert stores rows (one struct or a slice) and decodes the stored rows,
// as returned by the platform, into dst.
func (q *Query) Insert(ctx context.Context, rows any, dst any) error {
	token, err := q.c.Auth.accessToken(ctx)
	if err != nil {
		return err
	}
	return q.c.do(ctx, request{
		method: http.MethodPost,
		path:   q.path(),
		body:   rows,
		token:  token,
		header: http.Header{headerPrefer: {"return=representation"}},
	}, dst)
}

func (q *Query) path() string {
	return fmt.Sprintf("/rest/v1/%s", url.PathEscape(q.table))
}
