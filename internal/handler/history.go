package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ahtracker/internal/models"
	"ahtracker/internal/repository"
)

// copperPerGold converts stored copper prices to gold for display.
var copperPerGold = decimal.NewFromInt(10000)

type HistoryHandler struct {
	Repo repository.Repository
}

func (h *HistoryHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/history", h.list)
	r.GET("/api/v1/items", h.items)
}

type historyRow struct {
	ScanTimestamp time.Time       `json:"scan_timestamp"`
	ScanDate      string          `json:"scan_date"`
	ScanHour      time.Time       `json:"scan_hour"`
	Material      string          `json:"material"`
	Rank          *int16          `json:"rank"`
	Listings      int             `json:"listings"`
	TotalQuantity int64           `json:"total_quantity"`
	AveragePrice  int64           `json:"average_price"`
	RobustAvg     int64           `json:"robust_avg"`
	CurrentAvg    int64           `json:"current_avg"`
	AverageGold   decimal.Decimal `json:"average_gold"`
	CurrentGold   decimal.Decimal `json:"current_gold"`
}

func historyRowFromModel(m models.AuctionHistory) historyRow {
	var rank *int16
	if m.Rank > 0 {
		r := m.Rank
		rank = &r
	}
	return historyRow{
		ScanTimestamp: m.ScanTimestamp,
		ScanDate:      m.ScanDate,
		ScanHour:      m.ScanHour,
		Material:      m.Material,
		Rank:          rank,
		Listings:      m.Listings,
		TotalQuantity: m.TotalQuantity,
		AveragePrice:  m.AveragePrice,
		RobustAvg:     m.RobustAvg,
		CurrentAvg:    m.CurrentAvg,
		AverageGold:   decimal.NewFromInt(m.AveragePrice).DivRound(copperPerGold, 4),
		CurrentGold:   decimal.NewFromInt(m.CurrentAvg).DivRound(copperPerGold, 4),
	}
}

// @Summary List aggregated auction history
// @Tags history
// @Param material query string false "material name"
// @Param rank query int false "1-based rank"
// @Param since query string false "RFC3339 lower bound on scan_hour"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {array} historyRow
// @Router /api/v1/history [get]
func (h *HistoryHandler) list(c *gin.Context) {
	params := repository.ListAuctionHistoryParams{}
	if material := strings.TrimSpace(c.Query("material")); material != "" {
		params.Material = &material
	}
	if rankRaw := strings.TrimSpace(c.Query("rank")); rankRaw != "" {
		rank, err := strconv.ParseInt(rankRaw, 10, 16)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid rank", nil)
			return
		}
		r := int16(rank)
		params.Rank = &r
	}
	if sinceRaw := strings.TrimSpace(c.Query("since")); sinceRaw != "" {
		since, err := time.Parse(time.RFC3339, sinceRaw)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid since, want RFC3339", nil)
			return
		}
		params.Since = &since
	}
	if limitRaw := strings.TrimSpace(c.Query("limit")); limitRaw != "" {
		if limit, err := strconv.Atoi(limitRaw); err == nil {
			params.Limit = limit
		}
	}
	if offsetRaw := strings.TrimSpace(c.Query("offset")); offsetRaw != "" {
		if offset, err := strconv.Atoi(offsetRaw); err == nil {
			params.Offset = offset
		}
	}

	rows, err := h.Repo.ListAuctionHistory(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountAuctionHistory(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	out := make([]historyRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, historyRowFromModel(row))
	}
	Ok(c, out, map[string]any{"total": total})
}

// @Summary Fetch catalog entries by item ID
// @Tags history
// @Param ids query string true "comma-separated item IDs"
// @Success 200 {array} models.ItemCatalog
// @Router /api/v1/items [get]
func (h *HistoryHandler) items(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		Error(c, http.StatusBadRequest, "ids is required", nil)
		return
	}
	parts := strings.Split(raw, ",")
	ids := make([]int32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid item id: "+p, nil)
			return
		}
		ids = append(ids, int32(id))
	}

	items, err := h.Repo.ListItemCatalogByIDs(c.Request.Context(), ids)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}
