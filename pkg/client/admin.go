package client

import (
	"context"

	"github.com/darmiel/sessionbridge/internal/api"
	"github.com/darmiel/sessionbridge/internal/core"
)

// ListAudits retrieves the latest audit entries from the server, limited to the specified number.
// The server only answers for principals with the Admin role.
func (c *Client) ListAudits(ctx context.Context, limit uint) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if limit > 0 {
		ub = ub.addQueryParam("limit", limit)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
