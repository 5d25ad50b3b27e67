package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"weather-predictor/internal/models"
)

// StationClient reads archive records from a station's JSON export endpoint.
type StationClient struct {
	*BaseClient
	baseURL string
}

// StationRecord mirrors one archive row. Null columns decode to nil and
// become NaN, except a missing strike count, which reads as no strikes.
type StationRecord struct {
	DateTime          int64    `json:"dateTime"`
	Pressure          *float64 `json:"pressure"`
	OutTemp           *float64 `json:"outTemp"`
	OutHumidity       *float64 `json:"outHumidity"`
	WindSpeed         *float64 `json:"windSpeed"`
	Rain              *float64 `json:"rain"`
	LightningStrikes  *float64 `json:"lightning_strike_count"`
	LightningDistance *float64 `json:"lightning_distance"`
}

func NewStationClient(baseURL string, config ClientConfig, logger *zap.Logger) *StationClient {
	return &StationClient{
		BaseClient: NewBaseClient("station", config, logger),
		baseURL:    baseURL,
	}
}

func (c *StationClient) GetObservations(ctx context.Context, since time.Time) ([]models.Observation, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid station url: %w", err)
	}
	q := u.Query()
	q.Set("since", strconv.FormatInt(since.Unix(), 10))
	u.RawQuery = q.Encode()

	data, err := c.GetWithRetry(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch observations: %w", err)
	}

	var records []StationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	observations := make([]models.Observation, 0, len(records))
	for _, r := range records {
		observations = append(observations, r.Observation())
	}
	return observations, nil
}

func (r StationRecord) Observation() models.Observation {
	return models.Observation{
		Timestamp:         time.Unix(r.DateTime, 0),
		Pressure:          valueOrNaN(r.Pressure),
		OutTemp:           valueOrNaN(r.OutTemp),
		OutHumidity:       valueOrNaN(r.OutHumidity),
		WindSpeed:         valueOrNaN(r.WindSpeed),
		Rain:              valueOrNaN(r.Rain),
		LightningStrikes:  valueOr(r.LightningStrikes, 0),
		LightningDistance: valueOrNaN(r.LightningDistance),
	}
}

func valueOrNaN(v *float64) float64 {
	return valueOr(v, math.NaN())
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
