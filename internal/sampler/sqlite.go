package sampler

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"weather-predictor/internal/models"
)

// Missing strike counts mean the sensor reported nothing, so they read as 0.
const archiveQuery = `
	SELECT dateTime, pressure, outTemp, outHumidity, windSpeed, rain,
	       COALESCE(lightning_strike_count, 0), lightning_distance
	FROM archive
	WHERE dateTime > ?
	ORDER BY dateTime ASC`

// SQLiteSource reads a weewx-style archive table.
type SQLiteSource struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

func NewSQLiteSource(path string, logger *zap.Logger) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	return &SQLiteSource{db: db, path: path, logger: logger}, nil
}

// NewSQLiteSourceFromDB wraps an already open database.
func NewSQLiteSourceFromDB(db *sql.DB, logger *zap.Logger) *SQLiteSource {
	return &SQLiteSource{db: db, path: "(shared)", logger: logger}
}

func (s *SQLiteSource) Name() string {
	return "sqlite:" + s.path
}

func (s *SQLiteSource) Observations(ctx context.Context, since time.Time) ([]models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, archiveQuery, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var (
			ts                                   int64
			pressure, temp, humidity, wind, rain sql.NullFloat64
			strikes, distance                    sql.NullFloat64
		)
		if err := rows.Scan(&ts, &pressure, &temp, &humidity, &wind, &rain, &strikes, &distance); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		out = append(out, models.Observation{
			Timestamp:         time.Unix(ts, 0),
			Pressure:          nullToNaN(pressure),
			OutTemp:           nullToNaN(temp),
			OutHumidity:       nullToNaN(humidity),
			WindSpeed:         nullToNaN(wind),
			Rain:              nullToNaN(rain),
			LightningStrikes:  nullToNaN(strikes),
			LightningDistance: nullToNaN(distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	s.logger.Debug("Archive query finished",
		zap.String("path", s.path),
		zap.Int("rows", len(out)))
	return out, nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
