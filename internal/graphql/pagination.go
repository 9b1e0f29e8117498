package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// PageInfo is the Relay pagination block.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// connection is the Relay connection shape at the end of a connection path.
// Both edges[].node and the flattened nodes[] convention are accepted.
type connection struct {
	Edges []struct {
		Node json.RawMessage `json:"node"`
	} `json:"edges"`
	Nodes    []json.RawMessage `json:"nodes"`
	PageInfo PageInfo          `json:"pageInfo"`
}

// FetchFunc performs one page's request given the variables for that page.
// Letting the caller own the request permits different queries per page,
// which union-typed root fields need.
type FetchFunc func(ctx context.Context, vars map[string]any) (json.RawMessage, error)

// EachNode walks Relay cursor pagination. connectionPath is the ordered list
// of field names from the data root to the connection. After every page the
// endCursor is fed back into the variables under the client's cursor
// parameter until hasNextPage is false.
func (c *Client) EachNode(
	ctx context.Context,
	vars map[string]any,
	connectionPath []string,
	fetch FetchFunc,
	fn func(node json.RawMessage) error,
) error {
	if len(connectionPath) == 0 {
		return fmt.Errorf("graphql: empty connection path")
	}

	// Never mutate the caller's variables.
	pageVars := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		pageVars[k] = v
	}

	for {
		data, err := fetch(ctx, pageVars)
		if err != nil {
			return err
		}

		conn, err := digConnection(data, connectionPath)
		if err != nil {
			return err
		}

		for _, edge := range conn.Edges {
			if err := fn(edge.Node); err != nil {
				return err
			}
		}
		for _, node := range conn.Nodes {
			if err := fn(node); err != nil {
				return err
			}
		}

		if !conn.PageInfo.HasNextPage {
			return nil
		}
		pageVars[c.cursorParam] = conn.PageInfo.EndCursor
	}
}

// digConnection follows connectionPath into data and decodes the connection.
func digConnection(data json.RawMessage, connectionPath []string) (*connection, error) {
	cur := data
	for i, field := range connectionPath {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil, fmt.Errorf("graphql: connection path %q: decode at %q: %w",
				strings.Join(connectionPath, "."), field, err)
		}
		next, ok := obj[field]
		if !ok || string(next) == "null" {
			return nil, fmt.Errorf("graphql: connection path %q: field %q missing in response (step %d)",
				strings.Join(connectionPath, "."), field, i+1)
		}
		cur = next
	}

	var conn connection
	if err := json.Unmarshal(cur, &conn); err != nil {
		return nil, fmt.Errorf("graphql: decode connection at %q: %w", strings.Join(connectionPath, "."), err)
	}
	return &conn, nil
}
