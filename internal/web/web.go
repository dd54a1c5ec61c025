package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"meetcal/internal/config"
	"meetcal/internal/dates"
	"meetcal/internal/ics"
	appLog "meetcal/internal/log"
	"meetcal/internal/model"
	"meetcal/internal/notes"
)

// maxBodyBytes bounds uploaded notes, plans and calendars.
const maxBodyBytes = 1 << 20

// Server exposes the notes parser and calendar encoder over HTTP.
type Server struct {
	cfg      *config.Config
	mux      *http.ServeMux
	enc      *ics.Encoder
	resolver *dates.Resolver
	parser   *notes.Parser
}

// NewServer constructs a Server from cfg.
func NewServer(cfg *config.Config) (*Server, error) {
	encCfg, err := cfg.EncoderConfig()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ResolverOptions()
	if err != nil {
		return nil, err
	}
	resolver := dates.New(opts)
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		enc:      ics.NewEncoder(encCfg),
		resolver: resolver,
		parser:   notes.New(notes.Options{Resolver: resolver}),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="meetcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config) error {
	s, err := NewServer(cfg)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/notes", s.handleNotes)
	s.mux.HandleFunc("POST /api/invite", s.handleInvite)
	s.mux.HandleFunc("POST /api/plan", s.handlePlan)
	s.mux.HandleFunc("POST /api/inspect", s.handleInspect)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleNotes parses the request body as meeting notes and returns the
// extracted record as JSON.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleInvite turns meeting notes into a single REQUEST invitation.
//
// POST /api/invite?location=Room+4&duration=45&attendee=a@example.com
//   - location: event location (optional)
//   - duration: minutes (default from config)
//   - attendee: invitee address, repeatable
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := s.cfg.MeetingOptions()
	opts.Location = q.Get("location")
	opts.Attendees = q["attendee"]
	if m := parseIntDefault(q.Get("duration"), 0); m > 0 {
		opts.Duration = time.Duration(m) * time.Minute
	}

	ev, err := s.enc.FromMeeting(rec, opts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	body, err := s.enc.Encode(ev)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	appLog.Info("api invite encoded",
		"title", ev.Title,
		"uid", ev.UID,
		"attendees", len(ev.Attendees),
		"pending_items", rec.PendingCount(),
	)
	writeCalendar(w, ics.FileName(ev.Title), body)
}

// planEvent is one encoded invitation in a non-batch /api/plan response.
type planEvent struct {
	UID      string `json:"uid"`
	Title    string `json:"title"`
	Calendar string `json:"calendar"`
}

// handlePlan encodes a YAML/JSON plan. With batch=1 the response is one
// PUBLISH calendar; otherwise a JSON list of per-event invitations.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	plan, err := ics.DecodePlan(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.enc.FromPlan(plan, s.resolver)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if r.URL.Query().Get("batch") == "1" {
		body, err := s.enc.EncodeBatch(events)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeCalendar(w, ics.FileName(plan.MeetingTitle), body)
		return
	}

	out := make([]planEvent, 0, len(events))
	for _, ev := range events {
		body, err := s.enc.Encode(ev)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		out = append(out, planEvent{UID: ev.UID, Title: ev.Title, Calendar: body})
	}
	writeJSON(w, http.StatusOK, out)
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	UID     string    `json:"uid"`
	Summary string    `json:"summary"`
	AllDay  bool      `json:"all_day"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type inspectResponse struct {
	Occurrences   []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs []string        `json:"truncated_uids,omitempty"`
	RangeStart    time.Time       `json:"range_start"`
	RangeEnd      time.Time       `json:"range_end"`
}

// handleInspect reads an uploaded calendar and lists its occurrences.
//
// POST /api/inspect?days=90
//   - days: window after the earliest event (default 90)
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	days := parseIntDefault(r.URL.Query().Get("days"), 90)
	if days <= 0 {
		days = 90
	}

	events, err := ics.Parse(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := inspectResponse{Occurrences: []occurrenceDTO{}}
	if len(events) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	first := events[0].Start
	for _, ev := range events[1:] {
		if ev.Start.Before(first) {
			first = ev.Start
		}
	}
	resp.RangeStart = first
	resp.RangeEnd = first.AddDate(0, 0, days)

	res, err := ics.Expand(events, ics.ExpandConfig{
		DisplayLocation: s.enc.Zone().Location(),
		RangeStart:      resp.RangeStart,
		RangeEnd:        resp.RangeEnd,
	})
	if err != nil {
		appLog.Error("api inspect: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}
	for _, o := range res.Occurrences {
		resp.Occurrences = append(resp.Occurrences, occurrenceDTO{
			UID:     o.UID,
			Summary: o.Summary,
			AllDay:  o.AllDay,
			Start:   o.Start,
			End:     o.End,
		})
	}
	resp.TruncatedUIDs = res.Truncated
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (model.MeetingRecord, bool) {
	data, ok := readBody(w, r)
	if !ok {
		return model.MeetingRecord{}, false
	}
	rec, err := s.parser.Parse(string(data))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, notes.ErrEmptyInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return model.MeetingRecord{}, false
	}
	return rec, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return data, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeCalendar(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
