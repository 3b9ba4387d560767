package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/application"
	"github.com/sawpanic/crewrun/internal/assign"
	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/reconcile"
	"github.com/sawpanic/crewrun/internal/views"
	"github.com/sawpanic/crewrun/internal/xlsx"
)

var errBadRequest = errors.New("bad request")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrExecutionCompleted),
		errors.Is(err, domain.ErrDuplicateAssignment),
		errors.Is(err, domain.ErrGateBlocked),
		errors.Is(err, domain.ErrQuotaExhausted):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrUnknownInfluencer),
		errors.Is(err, domain.ErrAssignmentNotFound),
		errors.Is(err, domain.ErrRosterMissing):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrUnknownBrand),
		errors.Is(err, domain.ErrInvalidSeason),
		errors.Is(err, domain.ErrInvalidMonth),
		errors.Is(err, domain.ErrInvalidExecutionCount),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrMissingColumns),
		errors.Is(err, application.ErrUnknownView):
		return http.StatusBadRequest, "invalid_request"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", requestID(r)).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: requestID(r),
		Timestamp: time.Now(),
		Details:   details,
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func errorStrings(err error) []string {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func (s *Server) filter(r *http.Request) (views.Filter, error) {
	q := r.URL.Query()
	return s.svc.ParseFilter(q.Get("season"), q.Get("month"), q.Get("brand"))
}

func (s *Server) keys(body KeysBody) ([]domain.Key, error) {
	if len(body.Keys) == 0 {
		return nil, fmt.Errorf("%w: no keys", errBadRequest)
	}
	keys := make([]domain.Key, 0, len(body.Keys))
	for _, k := range body.Keys {
		key, err := s.svc.ParseKey(k.ID, k.Brand, k.Month)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Server) getRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := s.svc.Roster(r.Context())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (s *Server) getGate(w http.ResponseWriter, r *http.Request) {
	month, err := domain.ParseMonth(r.URL.Query().Get("month"), s.svc.Season())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	rep, err := s.svc.GateReport(r.Context(), month)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) getDoctor(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Doctor(r.Context())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	f, err := s.filter(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	season := f.Season
	if season == "" {
		season = s.svc.Season()
	}

	ctx := r.Context()
	var rows any
	switch view := mux.Vars(r)["view"]; view {
	case "results":
		rows, err = s.svc.Results(ctx, f)
	case "influencers":
		f.Season = season
		rows, err = s.svc.Influencers(ctx, f)
	case "months":
		rows, err = s.svc.Months(ctx, season)
	case "brands":
		rows, err = s.svc.BrandTotals(ctx, season)
	case "template":
		rows, err = s.svc.Template(ctx, f)
	case "targets":
		rows, err = s.svc.Targets(ctx, season)
	default:
		err = fmt.Errorf("%w %q", application.ErrUnknownView, view)
	}
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	f, err := s.filter(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	view := mux.Vars(r)["view"]
	grids, err := s.svc.Grids(r.Context(), view, f)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	var buf bytes.Buffer
	if err := xlsx.Write(&buf, grids...); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view+".xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) getTargets(w http.ResponseWriter, r *http.Request) {
	season := s.svc.Season()
	if v := r.URL.Query().Get("season"); v != "" {
		sv, err := domain.ParseSeason(v)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		season = sv
	}
	targets, err := s.svc.Targets(r.Context(), season)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) putTarget(w http.ResponseWriter, r *http.Request) {
	var body TargetBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	month, err := domain.ParseMonth(body.Month, s.svc.Season())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	brand, err := domain.ParseBrand(body.Brand, s.svc.Brands())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if body.Target < 0 {
		s.writeError(w, r, fmt.Errorf("%w: negative target", errBadRequest), nil)
		return
	}
	t := domain.Target{Month: month, Brand: brand, Quantity: body.Target}
	if err := s.svc.SetTarget(r.Context(), t); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) postPlan(w http.ResponseWriter, r *http.Request) {
	var body PlanBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	season := s.svc.Season()
	if body.Season != "" {
		sv, err := domain.ParseSeason(body.Season)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		season = sv
	}
	var only []domain.Month
	for _, label := range body.Months {
		m, err := domain.ParseMonth(label, season)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		only = append(only, m)
	}
	res, err := s.svc.Plan(r.Context(), season, only...)
	if err != nil && res.Assigned() == 0 {
		s.writeError(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postAuto(w http.ResponseWriter, r *http.Request) {
	var body AutoBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	month, err := domain.ParseMonth(body.Month, s.svc.Season())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	qty, err := s.svc.ParseQuantities(body.Quantities)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}
	res, err := s.svc.AssignAuto(r.Context(), assign.AutoRequest{Month: month, Quantities: qty})
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postManual(w http.ResponseWriter, r *http.Request) {
	var body KeyBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	key, err := s.svc.ParseKey(body.ID, body.Brand, body.Month)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	a, err := s.svc.AssignManual(r.Context(), assign.ManualRequest{Month: key.Month, Brand: key.Brand, InfluencerID: key.InfluencerID})
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) deleteAssignments(w http.ResponseWriter, r *http.Request) {
	var body KeysBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	keys, err := s.keys(body)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	res, err := s.svc.DeleteAssignments(r.Context(), keys)
	if err != nil && len(res.Removed) == 0 {
		s.writeError(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	var body ResetBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	req := assign.ResetRequest{Cascade: body.Cascade}
	if body.Month != "" {
		m, err := domain.ParseMonth(body.Month, s.svc.Season())
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		req.Month = &m
	}
	res, err := s.svc.Reset(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postComplete(w http.ResponseWriter, r *http.Request) {
	s.executions(w, r, s.svc.MarkExecuted)
}

func (s *Server) postRevert(w http.ResponseWriter, r *http.Request) {
	s.executions(w, r, s.svc.Revert)
}

// executions reports partial success as 200 with the per-key errors.
func (s *Server) executions(w http.ResponseWriter, r *http.Request, fn func(context.Context, []domain.Key) (int, error)) {
	var body KeysBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	keys, err := s.keys(body)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	n, err := fn(r.Context(), keys)
	if err != nil && n == 0 {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Changed: n, Errors: errorStrings(err)})
}

func (s *Server) putURL(w http.ResponseWriter, r *http.Request) {
	var body URLBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	key, err := s.svc.ParseKey(body.ID, body.Brand, body.Month)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	changed, err := s.svc.SetURL(r.Context(), key, body.URL)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	resp := CountResponse{}
	if changed {
		resp.Changed = 1
	}
	writeJSON(w, http.StatusOK, resp)
}

// postUpload takes a multipart "file" field, CSV or XLSX.
func (s *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	mode, err := reconcile.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	rep, err := s.svc.Upload(r.Context(), data, r.URL.Query().Get("sheet"), mode)
	if err != nil {
		if len(rep.Errors) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:     fmt.Sprintf("%s: %d invalid rows", header.Filename, len(rep.Errors)),
				Code:      "invalid_rows",
				RequestID: requestID(r),
				Timestamp: time.Now(),
				Details:   rep,
			})
			return
		}
		s.writeError(w, r, err, nil)
		return
	}
	log.Info().Str("file", header.Filename).Str("mode", string(mode)).
		Int("inserted", rep.Inserted).Int("updated", rep.Updated).Int("removed", rep.Removed).
		Msg("execution upload applied")
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:     "endpoint not found: " + strings.TrimSpace(r.URL.Path),
		Code:      "not_found",
		RequestID: requestID(r),
		Timestamp: time.Now(),
	})
}

// methodNotAllowed also answers CORS preflight, which matches no route.
func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:     "method not allowed: " + r.Method,
		Code:      "method_not_allowed",
		RequestID: requestID(r),
		Timestamp: time.Now(),
	})
}
