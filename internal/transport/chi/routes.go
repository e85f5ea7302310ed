package chi

import (
	"fmt"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// SyncReportParams are the query parameters of PUT /v1/reports/{kind}/{id}.
type SyncReportParams struct {
	// Match runs matching right after the projection is stored.
	Match *bool
}

// ListNotificationsParams are the query parameters of GET /v1/users/{id}/notifications.
type ListNotificationsParams struct {
	Limit *int
}

// InvalidParamFormatError is passed to the error handler when a parameter fails to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerOptions configures HandlerWithOptions.
type ServerOptions struct {
	BaseRouter       gochi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions mounts every admin route of s on opts.BaseRouter.
func HandlerWithOptions(s *Server, opts ServerOptions) http.Handler {
	r := opts.BaseRouter
	if r == nil {
		r = gochi.NewRouter()
	}
	if opts.ErrorHandlerFunc == nil {
		opts.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		}
	}
	wr := &wrapper{s: s, onError: opts.ErrorHandlerFunc}

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r gochi.Router) {
		r.Post("/reports/found/{id}/combined-search", wr.CombinedSearch)
		r.Post("/reports/{kind}/{id}/match", wr.RunMatching)
		r.Put("/reports/{kind}/{id}", wr.SyncReport)
		r.Delete("/reports/{kind}/{id}", wr.DeleteReport)

		r.Get("/matches/lost-report/{id}", wr.ListMatchesByLostReport)
		r.Get("/matches/status/{status}", wr.ListMatchesByStatus)
		r.Get("/matches/{matchId}", wr.GetMatch)
		r.Put("/matches/{matchId}/status", wr.UpdateMatchStatus)

		r.Put("/users/{id}", wr.SyncUser)
		r.Get("/users/{id}/periodic-search", wr.GetPeriodicStatus)
		r.Put("/users/{id}/periodic-search", wr.UpdatePeriodicSettings)
		r.Post("/users/{id}/periodic-search/trigger", wr.TriggerForUser)
		r.Get("/users/{id}/notifications", wr.ListNotifications)
		r.Get("/users/{id}/events", wr.StreamEvents)

		r.Post("/periodic-search/trigger/{kind}/{id}", wr.TriggerForReport)
		r.Post("/periodic-search/cycle", s.RunCycle)
		r.Get("/periodic-search/stats", s.PeriodicStats)
	})
	return r
}

// wrapper binds path and query parameters before calling the Server.
type wrapper struct {
	s       *Server
	onError func(w http.ResponseWriter, r *http.Request, err error)
}

func bindPath(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, gochi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

func bindQuery(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

func (wr *wrapper) kindAndID(w http.ResponseWriter, r *http.Request) (kind, id string, ok bool) {
	if err := bindPath(r, "kind", &kind); err != nil {
		wr.onError(w, r, err)
		return "", "", false
	}
	if err := bindPath(r, "id", &id); err != nil {
		wr.onError(w, r, err)
		return "", "", false
	}
	return kind, id, true
}

func (wr *wrapper) single(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	if err := bindPath(r, name, &v); err != nil {
		wr.onError(w, r, err)
		return "", false
	}
	return v, true
}

// RunMatching binds POST /v1/reports/{kind}/{id}/match.
func (wr *wrapper) RunMatching(w http.ResponseWriter, r *http.Request) {
	if kind, id, ok := wr.kindAndID(w, r); ok {
		wr.s.RunMatching(w, r, kind, id)
	}
}

// CombinedSearch binds POST /v1/reports/found/{id}/combined-search.
func (wr *wrapper) CombinedSearch(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "id"); ok {
		wr.s.CombinedSearch(w, r, id)
	}
}

// SyncReport binds PUT /v1/reports/{kind}/{id}.
func (wr *wrapper) SyncReport(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := wr.kindAndID(w, r)
	if !ok {
		return
	}
	var params SyncReportParams
	if err := bindQuery(r, "match", &params.Match); err != nil {
		wr.onError(w, r, err)
		return
	}
	wr.s.SyncReport(w, r, kind, id, params)
}

// DeleteReport binds DELETE /v1/reports/{kind}/{id}.
func (wr *wrapper) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if kind, id, ok := wr.kindAndID(w, r); ok {
		wr.s.DeleteReport(w, r, kind, id)
	}
}

// ListMatchesByLostReport binds GET /v1/matches/lost-report/{id}.
func (wr *wrapper) ListMatchesByLostReport(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "id"); ok {
		wr.s.ListMatchesByLostReport(w, r, id)
	}
}

// ListMatchesByStatus binds GET /v1/matches/status/{status}.
func (wr *wrapper) ListMatchesByStatus(w http.ResponseWriter, r *http.Request) {
	if status, ok := wr.single(w, r, "status"); ok {
		wr.s.ListMatchesByStatus(w, r, status)
	}
}

// GetMatch binds GET /v1/matches/{matchId}.
func (wr *wrapper) GetMatch(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "matchId"); ok {
		wr.s.GetMatch(w, r, id)
	}
}

// UpdateMatchStatus binds PUT /v1/matches/{matchId}/status.
func (wr *wrapper) UpdateMatchStatus(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "matchId"); ok {
		wr.s.UpdateMatchStatus(w, r, id)
	}
}

// SyncUser binds PUT /v1/users/{id}.
func (wr *wrapper) SyncUser(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "id"); ok {
		wr.s.SyncUser(w, r, id)
	}
}

// GetPeriodicStatus binds GET /v1/users/{id}/periodic-search.
func (wr *wrapper) GetPeriodicStatus(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "id"); ok {
		wr.s.GetPeriodicStatus(w, r, id)
	}
}

// UpdatePeriodicSettings binds PUT /v1/users/{id}/periodic-search.
func (wr *wrapper) UpdatePeriodicSettings(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "id"); ok {
		wr.s.UpdatePeriodicSettings(w, r, id)
	}
}

// TriggerForUser binds POST /v1/users/{id}/periodic-search/trigger.
func (wr *wrapper) TriggerForUser(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "id"); ok {
		wr.s.TriggerForUser(w, r, id)
	}
}

// ListNotifications binds GET /v1/users/{id}/notifications.
func (wr *wrapper) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := wr.single(w, r, "id")
	if !ok {
		return
	}
	var params ListNotificationsParams
	if err := bindQuery(r, "limit", &params.Limit); err != nil {
		wr.onError(w, r, err)
		return
	}
	wr.s.ListNotifications(w, r, id, params)
}

// StreamEvents binds GET /v1/users/{id}/events.
func (wr *wrapper) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if id, ok := wr.single(w, r, "id"); ok {
		wr.s.StreamEvents(w, r, id)
	}
}

// TriggerForReport binds POST /v1/periodic-search/trigger/{kind}/{id}.
func (wr *wrapper) TriggerForReport(w http.ResponseWriter, r *http.Request) {
	if kind, id, ok := wr.kindAndID(w, r); ok {
		wr.s.TriggerForReport(w, r, kind, id)
	}
}
