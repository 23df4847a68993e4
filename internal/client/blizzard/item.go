package blizzard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ItemDetail is the per-item metadata document. Only the fields the catalog
// keeps are mapped; the full payload is preserved by the caller as raw JSON.
type ItemDetail struct {
	ID            int32     `json:"id"`
	Name          string    `json:"name"`
	Quality       NamedType `json:"quality"`
	Level         int32     `json:"level"`
	ItemClass     NamedRef  `json:"item_class"`
	ItemSubclass  NamedRef  `json:"item_subclass"`
	PurchasePrice int64     `json:"purchase_price"`
	SellPrice     int64     `json:"sell_price"`
	IsStackable   bool      `json:"is_stackable"`
	Media         MediaRef  `json:"media"`

	raw []byte
}

type NamedType struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type NamedRef struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

type MediaRef struct {
	Key struct {
		Href string `json:"href"`
	} `json:"key"`
	ID int32 `json:"id"`
}

// Raw returns the unparsed response body.
func (d *ItemDetail) Raw() []byte {
	return d.raw
}

// Item fetches static metadata for one item ID. The per-item endpoint is
// rate-limit sensitive; callers pace their own requests.
func (c *Client) Item(ctx context.Context, token string, id int32) (*ItemDetail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("item id is required")
	}
	query := url.Values{}
	query.Set("namespace", "static-"+c.region)
	query.Set("locale", c.locale)
	body, _, err := c.doRequest(ctx, "/data/wow/item/"+strconv.Itoa(int(id)), query, token)
	if err != nil {
		return nil, err
	}
	var parsed ItemDetail
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse item response: %w", err)
	}
	parsed.raw = body
	return &parsed, nil
}
