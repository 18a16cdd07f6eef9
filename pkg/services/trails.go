package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/harun/mate/pkg/tools"
)

const trailSchema = `
CREATE TABLE IF NOT EXISTS trails (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	length_km   REAL NOT NULL,
	ascent_m    REAL NOT NULL,
	difficulty  TEXT,
	description TEXT,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trails_location ON trails(latitude, longitude);
`

// ErrTrailNotFound is returned when a trail id has no row.
var ErrTrailNotFound = fmt.Errorf("trail not found")

// TrailStore is a SQLite-backed trail catalog.
type TrailStore struct {
	db   *sql.DB
	path string
}

// NewTrailStore opens or creates a SQLite trail catalog.
func NewTrailStore(dbPath string) (*TrailStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("trail database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open trail database: %w", err)
	}

	if _, err := db.Exec(trailSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init trail schema: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("Trail catalog initialized")

	return &TrailStore{db: db, path: dbPath}, nil
}

// Close closes the underlying database.
func (s *TrailStore) Close() error {
	return s.db.Close()
}

// Add inserts or replaces a trail.
func (s *TrailStore) Add(ctx context.Context, trail tools.Trail) error {
	if trail.ID == "" {
		return fmt.Errorf("trail id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO trails (id, name, length_km, ascent_m, difficulty, description, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trail.ID, trail.Name, trail.LengthKM, trail.AscentM, trail.Difficulty,
		trail.Description, trail.Latitude, trail.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to store trail %s: %w", trail.ID, err)
	}
	return nil
}

// Search finds trails within radiusKM of the coordinates whose name or
// description matches the query. An empty query matches everything in
// range. Results are ordered nearest first.
func (s *TrailStore) Search(ctx context.Context, query string, lat, lon, radiusKM float64) ([]tools.Trail, error) {
	// Bounding box prefilter; one degree of latitude is ~111 km.
	latDelta := radiusKM / 111.0
	lonDelta := radiusKM / (111.0 * math.Max(math.Cos(lat*math.Pi/180), 0.01))

	args := []interface{}{lat - latDelta, lat + latDelta, lon - lonDelta, lon + lonDelta}
	q := `SELECT id, name, length_km, ascent_m, difficulty, description, latitude, longitude
	      FROM trails
	      WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`
	if query != "" {
		q += ` AND (name LIKE ? OR description LIKE ?)`
		pattern := "%" + query + "%"
		args = append(args, pattern, pattern)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("trail search failed: %w", err)
	}
	defer rows.Close()

	var trails []tools.Trail
	for rows.Next() {
		trail, err := scanTrail(rows)
		if err != nil {
			return nil, err
		}
		if haversineKM(lat, lon, trail.Latitude, trail.Longitude) <= radiusKM {
			trails = append(trails, trail)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trail search failed: %w", err)
	}

	sortByDistance(trails, lat, lon)
	return trails, nil
}

// Details loads one trail by id.
func (s *TrailStore) Details(ctx context.Context, trailID string) (tools.Trail, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, length_km, ascent_m, difficulty, description, latitude, longitude
		 FROM trails WHERE id = ?`, trailID)

	trail, err := scanTrail(row)
	if err == sql.ErrNoRows {
		return tools.Trail{}, fmt.Errorf("%w: %s", ErrTrailNotFound, trailID)
	}
	if err != nil {
		return tools.Trail{}, err
	}
	return trail, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrail(row rowScanner) (tools.Trail, error) {
	var t tools.Trail
	var difficulty, description sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.LengthKM, &t.AscentM, &difficulty, &description, &t.Latitude, &t.Longitude)
	if err == sql.ErrNoRows {
		return tools.Trail{}, err
	}
	if err != nil {
		return tools.Trail{}, fmt.Errorf("failed to scan trail row: %w", err)
	}
	t.Difficulty = difficulty.String
	t.Description = description.String
	return t, nil
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

func sortByDistance(trails []tools.Trail, lat, lon float64) {
	sort.Slice(trails, func(i, j int) bool {
		return haversineKM(lat, lon, trails[i].Latitude, trails[i].Longitude) <
			haversineKM(lat, lon, trails[j].Latitude, trails[j].Longitude)
	})
}
