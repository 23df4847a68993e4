package blizzard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Auction is one commodity listing from the snapshot feed. unit_price is in
// copper; time_left is a coarse bucket (SHORT/MEDIUM/LONG/VERY_LONG).
type Auction struct {
	ID        int64       `json:"id"`
	Item      AuctionItem `json:"item"`
	Quantity  int32       `json:"quantity"`
	UnitPrice int64       `json:"unit_price"`
	TimeLeft  string      `json:"time_left"`
}

type AuctionItem struct {
	ID int32 `json:"id"`
}

type commoditiesResponse struct {
	Auctions []Auction `json:"auctions"`
}

// Commodities fetches the full commodity snapshot. The returned cursor is the
// Last-Modified response header; the feed refreshes on its own cadence and
// the header is the only change marker it exposes.
func (c *Client) Commodities(ctx context.Context, token string) ([]Auction, string, error) {
	query := url.Values{}
	query.Set("namespace", "dynamic-"+c.region)
	query.Set("locale", c.locale)
	body, header, err := c.doRequest(ctx, "/data/wow/auctions/commodities", query, token)
	if err != nil {
		return nil, "", err
	}
	var parsed commoditiesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to parse commodities response: %w", err)
	}
	return parsed.Auctions, header.Get("Last-Modified"), nil
}
