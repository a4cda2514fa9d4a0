package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/TxtConvert/internal/core"
	"github.com/JonMunkholm/TxtConvert/internal/logging"
	"github.com/JonMunkholm/TxtConvert/internal/throttle"
	"github.com/JonMunkholm/TxtConvert/internal/web/templates"
)

// multipartOverhead is added to MaxFileSize for form fields and boundaries.
const multipartOverhead = 1 << 20

// errFileTooLarge marks uploads over Convert.MaxFileSize; answered with 413.
var errFileTooLarge = errors.New("file too large")

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := templates.IndexData{
		MaxFileSize:     s.cfg.Convert.MaxFileSize,
		RateCapacity:    s.cfg.Rate.Capacity,
		RateWindow:      s.cfg.Rate.Window.String(),
		RateLimited:     s.throttle.Limiter != nil,
		StrictFourField: s.cfg.Convert.StrictFourField,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

// handleConvert converts an uploaded .txt file and streams back the result
// as an attachment.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Convert.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(s.cfg.Convert.MaxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ValidationError("file", fmt.Errorf("%w: %w", errFileTooLarge, err)))
			return
		}
		s.respondError(w, r, core.ValidationError("file", fmt.Errorf("invalid form: %w", err)))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ValidationError("file", errors.New("no file provided")))
		return
	}
	defer file.Close()

	if header.Size > s.cfg.Convert.MaxFileSize {
		s.respondError(w, r, core.ValidationError("file", fmt.Errorf("%w: %d bytes", errFileTooLarge, header.Size)))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, core.ValidationError("file", fmt.Errorf("read upload: %w", err)))
		return
	}

	conv, err := s.service.Prepare(ctx, core.ConvertRequest{
		FileName:  header.Filename,
		Content:   content,
		Separator: r.FormValue("separator"),
		Type:      r.FormValue("type"),
		ClientID:  core.ClientIDFromContext(ctx),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", conv.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachmentName(conv.OutputName)+`"`)
	w.Header().Set("X-Conversion-ID", conv.ID.String())

	convLogger := logging.WithFields(ctx,
		"conversion_id", conv.ID,
		"format", string(conv.Format),
	)

	// Prepare built the output, so only writing to the client can fail here
	// and the status is already sent.
	if err := s.service.Export(ctx, conv, w); err != nil {
		convLogger.Error("writing converted file failed", "error", err)
		return
	}

	convLogger.Info("conversion complete",
		"file", conv.FileName,
		"rows", conv.Table.Len(),
	)
}

// attachmentName makes name safe for a quoted Content-Disposition value.
func attachmentName(name string) string {
	return strings.NewReplacer(`"`, "", `\`, "", "\r", "", "\n", "").Replace(name)
}

// handleHistory returns recent conversions.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, r, core.ValidationError("limit", fmt.Errorf("invalid limit %q", v)))
			return
		}
		limit = min(n, 1000)
	}

	records, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.ConversionRecord{}
	}

	writeJSON(w, map[string]interface{}{
		"conversions": records,
		"count":       len(records),
	})
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Conversions core.LimiterStatus `json:"conversions"`
	Throttle    throttleStatus     `json:"throttle"`
}

type throttleStatus struct {
	Enabled  bool   `json:"enabled"`
	Backend  string `json:"backend,omitempty"`
	Capacity int    `json:"capacity"`
	Window   string `json:"window"`
	Buckets  *int   `json:"buckets,omitempty"`
}

// handleStatus reports conversion slots and throttle settings.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Conversions: s.service.LimiterStatus(),
		Throttle: throttleStatus{
			Enabled:  s.throttle.Limiter != nil,
			Capacity: s.cfg.Rate.Capacity,
			Window:   s.cfg.Rate.Window.String(),
		},
	}
	if resp.Throttle.Enabled {
		resp.Throttle.Backend = s.cfg.Rate.Backend
	}
	if s.throttle.Buckets != nil {
		n := s.throttle.Buckets.Len()
		resp.Throttle.Buckets = &n
	}
	writeJSON(w, resp)
}

// handleThrottleStats returns admitted and rejected counts.
func (s *Server) handleThrottleStats(w http.ResponseWriter, r *http.Request) {
	if s.throttle.Stats == nil {
		writeJSON(w, throttle.Snapshot{ByPath: map[string]throttle.Counters{}})
		return
	}

	snap, err := s.throttle.Stats.Snapshot(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// handleHealth is the liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
