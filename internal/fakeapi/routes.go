package fakeapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

type savedRoute struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Name        string    `json:"name"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	RouteTypes  *string   `json:"route_types"`
	Notes       *string   `json:"notes"`
	IsFavorite  bool      `json:"is_favorite"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type routePatch struct {
	Name        *string `json:"name"`
	Origin      *string `json:"origin"`
	Destination *string `json:"destination"`
	RouteTypes  *string `json:"route_types"`
	Notes       *string `json:"notes"`
	IsFavorite  *bool   `json:"is_favorite"`
	IsActive    *bool   `json:"is_active"`
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request, u *user) {
	q := r.URL.Query()
	skip, limit := 0, 100
	var fields []fieldError
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields = append(fields, fieldError{Loc: []any{"query", "skip"}, Msg: "Input should be greater than or equal to 0", Type: "greater_than_equal"})
		}
		skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			fields = append(fields, fieldError{Loc: []any{"query", "limit"}, Msg: "Input should be between 1 and 100", Type: "value_error"})
		}
		limit = n
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	favoritesOnly, _ := strconv.ParseBool(q.Get("favorites_only"))

	s.mu.Lock()
	var owned []savedRoute
	favorites := 0
	for _, rt := range s.routes {
		if rt.UserID != u.ID || !rt.IsActive {
			continue
		}
		if rt.IsFavorite {
			favorites++
		}
		if favoritesOnly && !rt.IsFavorite {
			continue
		}
		owned = append(owned, *rt)
	}
	s.mu.Unlock()

	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })
	total := len(owned)
	if skip > len(owned) {
		skip = len(owned)
	}
	owned = owned[skip:]
	if len(owned) > limit {
		owned = owned[:limit]
	}
	if owned == nil {
		owned = []savedRoute{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"routes":          owned,
		"total":           total,
		"favorites_count": favorites,
	})
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request, u *user) {
	var body routePatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidation(w, []fieldError{{Loc: []any{"body"}, Msg: "JSON decode error", Type: "json_invalid"}})
		return
	}
	if fields := validateRoute(body, true); len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.nextRouteID++
	rt := &savedRoute{
		ID:          s.nextRouteID,
		UserID:      u.ID,
		Name:        *body.Name,
		Origin:      *body.Origin,
		Destination: *body.Destination,
		RouteTypes:  body.RouteTypes,
		Notes:       body.Notes,
		IsFavorite:  body.IsFavorite != nil && *body.IsFavorite,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.routes[rt.ID] = rt
	out := *rt
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request, u *user) {
	s.mu.Lock()
	rt, ok := s.ownedRoute(r, u)
	var out savedRoute
	if ok {
		out = *rt
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Saved route not found", "ResourceNotFoundError")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateRoute(w http.ResponseWriter, r *http.Request, u *user) {
	var body routePatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidation(w, []fieldError{{Loc: []any{"body"}, Msg: "JSON decode error", Type: "json_invalid"}})
		return
	}
	if fields := validateRoute(body, false); len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	s.mu.Lock()
	rt, ok := s.ownedRoute(r, u)
	if ok {
		applyPatch(rt, body)
		rt.UpdatedAt = time.Now().UTC()
	}
	var out savedRoute
	if ok {
		out = *rt
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Saved route not found", "ResourceNotFoundError")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request, u *user) {
	s.mu.Lock()
	rt, ok := s.ownedRoute(r, u)
	if ok {
		delete(s.routes, rt.ID)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Saved route not found", "ResourceNotFoundError")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedRoute must be called with s.mu held.
func (s *Server) ownedRoute(r *http.Request, u *user) (*savedRoute, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return nil, false
	}
	rt, ok := s.routes[id]
	if !ok || rt.UserID != u.ID {
		return nil, false
	}
	return rt, true
}

func applyPatch(rt *savedRoute, p routePatch) {
	if p.Name != nil {
		rt.Name = *p.Name
	}
	if p.Origin != nil {
		rt.Origin = *p.Origin
	}
	if p.Destination != nil {
		rt.Destination = *p.Destination
	}
	if p.RouteTypes != nil {
		rt.RouteTypes = p.RouteTypes
	}
	if p.Notes != nil {
		rt.Notes = p.Notes
	}
	if p.IsFavorite != nil {
		rt.IsFavorite = *p.IsFavorite
	}
	if p.IsActive != nil {
		rt.IsActive = *p.IsActive
	}
}

func validateRoute(p routePatch, create bool) []fieldError {
	var out []fieldError
	check := func(field string, v *string, max int) {
		if v == nil {
			if create {
				out = append(out, fieldError{Loc: []any{"body", field}, Msg: "Field required", Type: "missing"})
			}
			return
		}
		n := len(strings.TrimSpace(*v))
		switch {
		case n < 1:
			out = append(out, fieldError{Loc: []any{"body", field}, Msg: "String should have at least 1 character", Type: "string_too_short"})
		case len(*v) > max:
			out = append(out, fieldError{Loc: []any{"body", field}, Msg: "String should have at most " + strconv.Itoa(max) + " characters", Type: "string_too_long"})
		}
	}
	check("name", p.Name, 255)
	check("origin", p.Origin, 255)
	check("destination", p.Destination, 255)
	if p.RouteTypes != nil && len(*p.RouteTypes) > 100 {
		out = append(out, fieldError{Loc: []any{"body", "route_types"}, Msg: "String should have at most 100 characters", Type: "string_too_long"})
	}
	return out
}
