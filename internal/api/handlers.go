package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/scale.report/internal/forecast"
	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/httputil"
	"github.com/banshee-data/scale.report/internal/metrics"
	"github.com/banshee-data/scale.report/internal/profile"
	"github.com/banshee-data/scale.report/internal/units"
	"github.com/banshee-data/scale.report/internal/version"
)

// dateLayout is the query-parameter date format.
const dateLayout = "2006-01-02"

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"git_sha": version.GitSHA,
	})
}

// measurementView is one record with display-unit weights.
type measurementView struct {
	history.Record
	Units string `json:"units"`
}

func view(r history.Record, unit string) measurementView {
	v := measurementView{Record: r, Units: unit}
	v.WeightKg = units.ConvertWeight(r.WeightKg, unit)
	v.IdealWeight = units.ConvertWeight(r.IdealWeight, unit)
	v.MuscleMass = units.ConvertWeight(r.MuscleMass, unit)
	v.BoneMass = units.ConvertWeight(r.BoneMass, unit)
	v.LeanBodyMass = units.ConvertWeight(r.LeanBodyMass, unit)
	return v
}

// displayUnits resolves the optional per-request units override.
func (s *Server) displayUnits(r *http.Request) (string, error) {
	v := r.URL.Query().Get("units")
	if v == "" {
		return s.units, nil
	}
	if !units.IsValid(v) {
		return "", fmt.Errorf("invalid 'units' %q, want one of %s", v, units.GetValidUnitsString())
	}
	return v, nil
}

// queryFromRequest builds a history filter from user/start/end parameters.
// End dates are inclusive through the whole day.
func queryFromRequest(r *http.Request) (history.Query, error) {
	q := history.Query{User: r.URL.Query().Get("user")}

	if v := r.URL.Query().Get("start"); v != "" {
		start, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, fmt.Errorf("invalid 'start' date %q, want YYYY-MM-DD", v)
		}
		q.Start = start
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, fmt.Errorf("invalid 'end' date %q, want YYYY-MM-DD", v)
		}
		q.End = end.AddDate(0, 0, 1).Add(-time.Second)
	}
	return q, nil
}

func (s *Server) listMeasurements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	q, err := queryFromRequest(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	unit, err := s.displayUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	records, err := s.store.Records()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read history: %v", err))
		return
	}

	filtered := history.Filter(records, q)
	views := make([]measurementView, len(filtered))
	for i, rec := range filtered {
		views[i] = view(rec, unit)
	}
	httputil.WriteJSONOK(w, views)
}

// statsView summarizes the filtered history. Weight aggregates are in the
// requested display units.
type statsView struct {
	Total     int              `json:"total"`
	AvgWeight float64          `json:"avg_weight"`
	MinWeight float64          `json:"min_weight"`
	MaxWeight float64          `json:"max_weight"`
	Units     string           `json:"units"`
	Last      *measurementView `json:"last,omitempty"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	q, err := queryFromRequest(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	unit, err := s.displayUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	records, err := s.store.Records()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read history: %v", err))
		return
	}

	filtered := history.Filter(records, q)
	out := statsView{Total: len(filtered), Units: unit}
	if len(filtered) > 0 {
		weights := make([]float64, len(filtered))
		for i, rec := range filtered {
			weights[i] = units.ConvertWeight(rec.WeightKg, unit)
		}
		out.AvgWeight = stat.Mean(weights, nil)
		out.MinWeight = floats.Min(weights)
		out.MaxWeight = floats.Max(weights)
		last := view(filtered[len(filtered)-1], unit)
		out.Last = &last
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	records, err := s.store.Records()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read history: %v", err))
		return
	}
	unit, err := s.displayUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if user := r.URL.Query().Get("user"); user != "" {
		records = history.Filter(records, history.Query{User: user})
	}
	if len(records) == 0 {
		httputil.NotFound(w, "no measurements recorded")
		return
	}
	httputil.WriteJSONOK(w, view(records[len(records)-1], unit))
}

// userView is the public shape of a profile. Birthdates stay private; only
// the derived age is reported.
type userView struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	HeightCm    int    `json:"height_cm"`
	Sex         string `json:"sex"`
	Age         int    `json:"age"`
}

func (s *Server) userView(p profile.Profile) userView {
	return userView{
		Username:    p.Username,
		DisplayName: p.DisplayName,
		HeightCm:    p.HeightCm,
		Sex:         p.Sex.String(),
		Age:         p.AgeAt(s.clock.Now()),
	}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listUsers(w, r)
	case http.MethodPost:
		s.createUser(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleUser routes /api/users/{username} mutations.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if username == "" || strings.Contains(username, "/") {
		httputil.NotFound(w, "no such route")
		return
	}
	switch r.Method {
	case http.MethodPut:
		s.updateUser(w, r, username)
	case http.MethodDelete:
		s.deleteUser(w, username)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	profiles := s.profiles.All()
	views := make([]userView, len(profiles))
	for i, p := range profiles {
		views[i] = s.userView(p)
	}
	httputil.WriteJSONOK(w, views)
}

// userPayload is the request body for profile mutations. Birthdate takes
// precedence over age when both are present.
type userPayload struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	HeightCm    int    `json:"height_cm"`
	Sex         string `json:"sex"`
	Birthdate   string `json:"birthdate"`
	Age         int    `json:"age"`
}

// apply folds the payload's set fields into the profile.
func (pl userPayload) apply(p *profile.Profile) error {
	if pl.DisplayName != "" {
		p.DisplayName = pl.DisplayName
	}
	if pl.HeightCm != 0 {
		p.HeightCm = pl.HeightCm
	}
	if pl.Sex != "" {
		sex, err := metrics.ParseSex(pl.Sex)
		if err != nil {
			return err
		}
		p.Sex = sex
	}
	switch {
	case pl.Birthdate != "":
		bd, err := time.Parse(profile.BirthdateLayout, pl.Birthdate)
		if err != nil {
			return fmt.Errorf("invalid birthdate %q, want YYYY-MM-DD", pl.Birthdate)
		}
		p.Birthdate = bd
		p.StoredAge = 0
	case pl.Age != 0:
		p.StoredAge = pl.Age
		p.Birthdate = time.Time{}
	}
	return nil
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var pl userPayload
	if err := json.NewDecoder(r.Body).Decode(&pl); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	if pl.Username == "" {
		httputil.BadRequest(w, "'username' is required")
		return
	}

	p := profile.Profile{Username: pl.Username, DisplayName: pl.Username}
	if err := pl.apply(&p); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	now := s.clock.Now()
	if err := p.Validate(now); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.profiles.Add(p, now); err != nil {
		if errors.Is(err, profile.ErrExists) {
			httputil.WriteJSONError(w, http.StatusConflict, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to save profile: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, s.userView(p))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, username string) {
	p, ok := s.profiles.Get(username)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no profile named %q", username))
		return
	}

	var pl userPayload
	if err := json.NewDecoder(r.Body).Decode(&pl); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	if pl.Username != "" && pl.Username != username {
		httputil.BadRequest(w, "username cannot be changed")
		return
	}
	if err := pl.apply(&p); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	now := s.clock.Now()
	if err := p.Validate(now); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.profiles.Update(p, now); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to save profile: %v", err))
		return
	}
	httputil.WriteJSONOK(w, s.userView(p))
}

func (s *Server) deleteUser(w http.ResponseWriter, username string) {
	if err := s.profiles.Delete(username); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			httputil.NotFound(w, fmt.Sprintf("no profile named %q", username))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to save profiles: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "deleted", "username": username})
}

func (s *Server) showForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	user := r.URL.Query().Get("user")
	if user == "" {
		httputil.BadRequest(w, "'user' parameter is required")
		return
	}
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 365 {
			httputil.BadRequest(w, "invalid 'days' parameter, want 1-365")
			return
		}
		days = parsed
	}

	records, err := s.store.Records()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read history: %v", err))
		return
	}

	f, err := forecast.Linear(history.Filter(records, history.Query{User: user}), days)
	if err == forecast.ErrInsufficientData {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("need at least %d measurements for %q to forecast", forecast.MinPoints, user))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("forecast failed: %v", err))
		return
	}
	httputil.WriteJSONOK(w, f)
}

func (s *Server) downloadCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	q, err := queryFromRequest(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	records, err := s.store.Records()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read history: %v", err))
		return
	}
	filtered := history.Filter(records, q)

	filename := "scale_data_" + s.clock.Now().Format(dateLayout) + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	cw.Write(history.Columns)
	for _, rec := range filtered {
		cw.Write([]string{
			strconv.FormatFloat(rec.WeightKg, 'f', -1, 64),
			strconv.Itoa(rec.ImpedanceOhm),
			strconv.FormatFloat(rec.LeanBodyMass, 'f', -1, 64),
			strconv.FormatFloat(rec.FatPercent, 'f', -1, 64),
			strconv.FormatFloat(rec.WaterPercent, 'f', -1, 64),
			strconv.FormatFloat(rec.MuscleMass, 'f', -1, 64),
			strconv.FormatFloat(rec.BoneMass, 'f', -1, 64),
			strconv.FormatFloat(rec.VisceralFat, 'f', -1, 64),
			strconv.FormatFloat(rec.BMI, 'f', -1, 64),
			strconv.FormatFloat(rec.BMR, 'f', -1, 64),
			strconv.FormatFloat(rec.IdealWeight, 'f', -1, 64),
			strconv.FormatFloat(rec.MetabolicAge, 'f', -1, 64),
			rec.Timestamp.Format(history.TimestampLayout),
			rec.Username,
		})
	}
	cw.Flush()
}
