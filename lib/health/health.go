package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"log/slog"

	"gorm.io/gorm"
)

// Component is the health of one dependency.
type Component struct {
	Name    string `json:"name,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health represents the health check response structure.
// It includes the overall status, timestamp, the run database and every
// configured data source.
type Health struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	DB        Component   `json:"db"`
	Sources   []Component `json:"sources"`
}

// Pinger reports the reachability of each named data source.
type Pinger interface {
	Ping(ctx context.Context) map[string]error
}

// Check returns an HTTP handler that performs health checks on the application.
// It verifies the database connection and every data source, and returns
// 503 when any of them fails.
func Check(db *gorm.DB, sources Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := Health{
			Status:    "ok",
			Timestamp: time.Now(),
			DB:        checkDB(ctx, db),
			Sources:   []Component{},
		}
		if health.DB.Status != "ok" {
			health.Status = "degraded"
		}

		for name, err := range sources.Ping(ctx) {
			c := Component{Name: name, Status: "ok"}
			if err != nil {
				c.Status = "error"
				c.Message = err.Error()
				health.Status = "degraded"
			}
			health.Sources = append(health.Sources, c)
		}
		sort.Slice(health.Sources, func(i, j int) bool {
			return health.Sources[i].Name < health.Sources[j].Name
		})

		status := http.StatusOK
		if health.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, health, status)
	}
}

func checkDB(ctx context.Context, db *gorm.DB) Component {
	sqlDB, err := db.DB()
	if err != nil {
		return Component{Status: "error", Message: "Failed to get database connection"}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return Component{Status: "error", Message: "Database ping failed"}
	}
	return Component{Status: "ok"}
}

// writeHealth writes the health check response to the HTTP response writer.
// It takes a response writer, health information, and HTTP status code.
func writeHealth(w http.ResponseWriter, health Health, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		slog.Error("Failed to encode health response", slog.Any("error", err))
	}
}
