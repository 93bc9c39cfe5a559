package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/plano-ai/plano/internal/app/engagement"
	"github.com/plano-ai/plano/internal/app/logbook"
	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/health"
	"github.com/plano-ai/plano/internal/infra/document"
)

// maxJSONBody bounds request bodies; photo data URLs dominate the size.
const maxJSONBody = 32 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
	}
	return nil
}

// ─── Plan ───────────────────────────────────────────────────────────────────

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Plans.HasPlan() {
		s.fail(w, r, domain.ErrNoPlan)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Plans.Plan())
}

func (s *Server) handleSavePlan(w http.ResponseWriter, r *http.Request) {
	var plan domain.WeekPlan
	if err := decodeJSON(w, r, &plan); err != nil {
		s.fail(w, r, err)
		return
	}
	canonical := make(domain.WeekPlan, len(plan))
	for day, dp := range plan {
		key, ok := domain.ParseDayKey(string(day))
		if !ok {
			s.fail(w, r, fmt.Errorf("%w: %q", domain.ErrUnknownDay, day))
			return
		}
		if _, dup := canonical[key]; dup {
			s.fail(w, r, fmt.Errorf("%w: day %q given more than once", domain.ErrValidation, key))
			return
		}
		dp.Day = key
		canonical[key] = dp
	}
	if err := s.svc.Plans.Save(canonical); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Plans.Plan())
}

func (s *Server) handleUpdateDay(w http.ResponseWriter, r *http.Request) {
	day, ok := domain.ParseDayKey(chi.URLParam(r, "day"))
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: %q", domain.ErrUnknownDay, chi.URLParam(r, "day")))
		return
	}
	var plan domain.DayPlan
	if err := decodeJSON(w, r, &plan); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Plans.UpdateDay(day, plan); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Plans.Day(day))
}

func (s *Server) handleResetPlan(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Plans.Reset(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type todayResponse struct {
	Plan    domain.DayPlan        `json:"plan"`
	Summary engagement.DaySummary `json:"summary"`
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	loc := s.svc.Progress.Location()
	now := s.now().In(loc)
	day := s.svc.Plans.Today(now)
	writeJSON(w, http.StatusOK, todayResponse{
		Plan:    day,
		Summary: engagement.DailySummary(day, s.svc.Progress.Logs(), now, loc),
	})
}

func (s *Server) handleRawPlan(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := s.svc.Plans.RawPlan()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: no interpreted document stored", domain.ErrNoPlan))
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (s *Server) handleImportPlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, document.MaxSize+1<<20)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: multipart field \"file\": %v", domain.ErrValidation, err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: read upload: %v", domain.ErrValidation, err))
		return
	}
	doc, err := document.New(hdr.Filename, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	plan, err := s.svc.Plans.Import(r.Context(), doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// ─── Logs ───────────────────────────────────────────────────────────────────

func (s *Server) handleRecordLog(w http.ResponseWriter, r *http.Request) {
	var req logbook.LogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}
	res, err := s.svc.Logbook.Record(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs := s.svc.Progress.Logs()
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(logs) {
		logs = logs[:limit]
	}
	writeJSON(w, http.StatusOK, logs)
}

// ─── Progress ───────────────────────────────────────────────────────────────

type progressResponse struct {
	Stats  domain.UserStats `json:"stats"`
	Badges []domain.Badge   `json:"badges"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Progress.Snapshot()
	writeJSON(w, http.StatusOK, progressResponse{Stats: snap.Stats, Badges: snap.Badges})
}

func (s *Server) handleClearProgress(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Progress.ClearData(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	loc := s.svc.Progress.Location()
	now := s.now().In(loc)
	writeJSON(w, http.StatusOK, engagement.DailySummary(s.svc.Plans.Today(now), s.svc.Progress.Logs(), now, loc))
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engagement.WeeklyScores(s.svc.Progress.Logs(), s.now(), s.svc.Progress.Location()))
}

// ─── Notifications & Health ─────────────────────────────────────────────────

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.svc.Notifications == nil {
		writeJSON(w, http.StatusOK, []domain.Notification{})
		return
	}
	list, err := s.svc.Notifications.List(queryInt(r, "limit", 50), r.URL.Query().Get("pending") == "true")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: notification id %q", domain.ErrValidation, chi.URLParam(r, "id")))
		return
	}
	if s.svc.Notifications == nil {
		s.fail(w, r, domain.ErrNotificationNotFound)
		return
	}
	if err := s.svc.Notifications.MarkShown(id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthChecks(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health == nil {
		writeJSON(w, http.StatusOK, []health.Status{})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Health.Statuses())
}
