package model

import "time"

type ProductMetric struct {
	ProductID   ItemID     `json:"productId"`
	Title       string     `json:"title"`
	ProductType string     `json:"productType"`
	Price       float64    `json:"price"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	AgeDays     int        `json:"ageDays"`
	SalesCount  int        `json:"salesCount"`
	Revenue     float64    `json:"revenue"`
	Refunds     int        `json:"refunds"`
	RefundRate  float64    `json:"refundRate"`
	LastSaleAt  *time.Time `json:"lastSaleAt,omitempty"`
	Score       float64    `json:"score"`
}

type StoreMetrics struct {
	Orders     int     `json:"orders"`
	Revenue    float64 `json:"revenue"`
	AOV        float64 `json:"aov"`
	Refunds    int     `json:"refunds"`
	RefundRate float64 `json:"refundRate"`
	Currency   string  `json:"currency"`
}

// Snapshot is the point-in-time catalog capture a cycle reasons over.
type Snapshot struct {
	SnapshotID     string          `json:"snapshotId"`
	Timestamp      time.Time       `json:"timestamp"`
	WindowHours    int             `json:"windowHours"`
	StoreMetrics   StoreMetrics    `json:"storeMetrics"`
	ProductMetrics []ProductMetric `json:"productMetrics"`
	Degraded       bool            `json:"degraded,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Product looks up a product by id.
func (s Snapshot) Product(id ItemID) (ProductMetric, bool) {
	for _, p := range s.ProductMetrics {
		if p.ProductID == id {
			return p, true
		}
	}
	return ProductMetric{}, false
}
