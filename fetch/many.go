package fetch

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is one successful FetchMany item.
type Result struct {
	Key   string
	Value json.RawMessage
}

// FetchMany runs every request concurrently and returns the successes in
// input order. Failures are logged and dropped; the result may be empty.
func (c *Client) FetchMany(ctx context.Context, reqs []Request) []Result {
	values := make([]json.RawMessage, len(reqs))

	var g errgroup.Group
	if c.opt.MaxConcurrency > 0 {
		g.SetLimit(c.opt.MaxConcurrency)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			v, err := c.Do(ctx, req)
			if err != nil {
				c.log.Warn("dropping failed fetch", zap.String("key", req.Key), zap.Error(err))
				return nil
			}
			values[i] = v
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Result, 0, len(reqs))
	for i, v := range values {
		if v != nil {
			out = append(out, Result{Key: reqs[i].Key, Value: v})
		}
	}
	return out
}
