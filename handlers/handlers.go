package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/icco/specimens/handlers/templates"
	"github.com/icco/specimens/lib/report"
	"github.com/icco/specimens/lib/source"
	"github.com/icco/specimens/lib/types"
	"github.com/icco/specimens/lib/validation"
	"github.com/icco/specimens/models"
)

// Title heads the report page.
const Title = "Biogeographical Analysis of Callitrichidae Distribution Patterns"

const historyPageSize = 20

// Runner produces reports and single chart panels.
type Runner interface {
	Run(ctx context.Context, req report.Request) (*report.Report, error)
	Chart(ctx context.Context, req report.Request, id string) (report.Panel, error)
}

// Tracker records each report run.
type Tracker interface {
	Track(ctx context.Context, run func() (*report.Report, error)) (*report.Report, error)
}

// Invalidator drops a cached source so the next report reloads it.
type Invalidator interface {
	Invalidate(name string) error
}

// History reads recorded report runs.
type History interface {
	Recent(ctx context.Context, page, size int) ([]models.ReportRun, int64, error)
	Stats(ctx context.Context) (*types.StatsData, error)
}

type errorData struct {
	Message string
}

type reportData struct {
	Title   string
	Sources []string
	Report  *report.Report
}

type historyData struct {
	Runs    []models.ReportRun
	Stats   *types.StatsData
	Page    int
	HasNext bool
}

func renderError(w http.ResponseWriter, message string, status int) {
	tmpl, err := templates.ParseTemplates("base.html", "error.html")
	if err != nil {
		slog.Error("Failed to parse error template", slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", errorData{Message: message}); err != nil {
		slog.Error("Failed to execute error template", slog.Any("error", err))
	}
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrUnknownSource), errors.Is(err, report.ErrUnknownChart):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// parseRequest reads source, year_min and year_max from the query string.
func parseRequest(req *http.Request) (report.Request, error) {
	q := req.URL.Query()
	years, err := validation.ParseYearRange(q.Get("year_min"), q.Get("year_max"))
	if err != nil {
		return report.Request{}, err
	}
	return report.Request{Source: q.Get("source"), YearMin: years.Min, YearMax: years.Max}, nil
}

// HandleReloadSource drops the cached table for the {name} source. The
// next request for it reads the source again.
func HandleReloadSource(inv Invalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := inv.Invalidate(name); err != nil {
			validation.WriteError(w, err, statusFor(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RenderReport writes rep as a self-contained HTML page.
func RenderReport(w io.Writer, rep *report.Report, sources []string) error {
	tmpl, err := templates.ParseTemplates("base.html", "report.html")
	if err != nil {
		return fmt.Errorf("failed to parse report template: %w", err)
	}
	if err := tmpl.ExecuteTemplate(w, "base", reportData{Title: Title, Sources: sources, Report: rep}); err != nil {
		return fmt.Errorf("failed to execute report template: %w", err)
	}
	return nil
}

// HandleReport serves the HTML dashboard.
func HandleReport(runner Runner, tracker Tracker, sources []string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reportReq, err := parseRequest(req)
		if err != nil {
			renderError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rep, err := tracker.Track(req.Context(), func() (*report.Report, error) {
			return runner.Run(req.Context(), reportReq)
		})
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				slog.Error("Failed to build report", slog.String("source", reportReq.Source), slog.Any("error", err))
				renderError(w, "We couldn't build the report. Please try again later.", status)
				return
			}
			renderError(w, err.Error(), status)
			return
		}

		var buf bytes.Buffer
		if err := RenderReport(&buf, rep, sources); err != nil {
			slog.Error("Failed to render report", slog.Any("error", err))
			renderError(w, "Something went wrong while displaying the page.", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := buf.WriteTo(w); err != nil {
			slog.Error("Failed to write report", slog.Any("error", err))
		}
	}
}

// HandleReportJSON serves the report as JSON, without chart images.
func HandleReportJSON(runner Runner, tracker Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reportReq, err := parseRequest(req)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		rep, err := tracker.Track(req.Context(), func() (*report.Report, error) {
			return runner.Run(req.Context(), reportReq)
		})
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				slog.Error("Failed to build report", slog.String("source", reportReq.Source), slog.Any("error", err))
			}
			validation.WriteError(w, err, status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rep); err != nil {
			slog.Error("Failed to encode report", slog.Any("error", err))
		}
	}
}

// HandleChartImage serves a single chart as PNG. A chart replaced by its
// warning answers 409 with the warning text.
func HandleChartImage(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if _, ok := report.Lookup(id); !ok {
			validation.WriteError(w, fmt.Errorf("%w: %q", report.ErrUnknownChart, id), http.StatusNotFound)
			return
		}

		reportReq, err := parseRequest(req)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		panel, err := runner.Chart(req.Context(), reportReq, id)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				slog.Error("Failed to render chart", slog.String("chart", id), slog.Any("error", err))
			}
			validation.WriteError(w, err, status)
			return
		}
		if !panel.Rendered() {
			validation.WriteError(w, errors.New(panel.Warning), http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(panel.Image)))
		if _, err := w.Write(panel.Image); err != nil {
			slog.Error("Failed to write chart", slog.String("chart", id), slog.Any("error", err))
		}
	}
}

// HandleHistory lists recorded report runs, newest first.
func HandleHistory(history History) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		page := 1
		if raw := req.URL.Query().Get("page"); raw != "" {
			p, err := strconv.Atoi(raw)
			if err != nil || validation.ValidatePagination(p, historyPageSize) != nil {
				renderError(w, "Invalid page number.", http.StatusBadRequest)
				return
			}
			page = p
		}

		runs, total, err := history.Recent(req.Context(), page, historyPageSize)
		if err != nil {
			slog.Error("Failed to list report runs", slog.Any("error", err))
			renderError(w, "We couldn't load the report history.", http.StatusInternalServerError)
			return
		}

		stats, err := history.Stats(req.Context())
		if err != nil {
			slog.Error("Failed to summarize report runs", slog.Any("error", err))
			renderError(w, "We couldn't load the report history.", http.StatusInternalServerError)
			return
		}

		tmpl, err := templates.ParseTemplates("base.html", "history.html")
		if err != nil {
			slog.Error("Failed to parse template", slog.Any("error", err))
			renderError(w, "Something went wrong while loading the page.", http.StatusInternalServerError)
			return
		}

		data := historyData{
			Runs:    runs,
			Stats:   stats,
			Page:    page,
			HasNext: int64(page*historyPageSize) < total,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
			slog.Error("Failed to execute template", slog.Any("error", err))
			renderError(w, "Something went wrong while displaying the page.", http.StatusInternalServerError)
			return
		}
	}
}
