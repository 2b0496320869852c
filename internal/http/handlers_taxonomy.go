package http

import (
	"net/http"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/services"
)

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	cat, err := s.deps.Taxonomy.CreateCategory(r.Context(), services.CategoryInput{
		OwnerID: userFromContext(r.Context()),
		GroupID: sanitizeInput(req.GroupID),
		Name:    sanitizeInput(req.Name),
		Type:    core.CategoryType(sanitizeInput(req.Type)),
		Icon:    sanitizeInput(req.Icon),
		Color:   sanitizeInput(req.Color),
	})
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/categories/"+cat.ID).
		Body(toCategoryResponse(cat)).
		Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Taxonomy.ListCategories(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	NewJSONResponse().Body(map[string]any{"categories": out}).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	upd := services.CategoryUpdate{
		Name:  sanitizedPtr(req.Name),
		Icon:  sanitizedPtr(req.Icon),
		Color: sanitizedPtr(req.Color),
	}
	if req.Type != nil {
		typ := core.CategoryType(sanitizeInput(*req.Type))
		upd.Type = &typ
	}

	cat, err := s.deps.Taxonomy.UpdateCategory(r.Context(), userFromContext(r.Context()), r.PathValue("id"), upd)
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toCategoryResponse(cat)).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Taxonomy.DeleteCategory(r.Context(), userFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	tag, err := s.deps.Taxonomy.CreateTag(r.Context(), services.TagInput{
		OwnerID: userFromContext(r.Context()),
		GroupID: sanitizeInput(req.GroupID),
		Name:    sanitizeInput(req.Name),
		Color:   sanitizeInput(req.Color),
	})
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/tags/"+tag.ID).
		Body(toTagResponse(tag)).
		Write(w)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.deps.Taxonomy.ListTags(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, toTagResponse(t))
	}
	NewJSONResponse().Body(map[string]any{"tags": out}).Write(w)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var req updateTagRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	tag, err := s.deps.Taxonomy.UpdateTag(r.Context(), userFromContext(r.Context()), r.PathValue("id"), services.TagUpdate{
		Name:  sanitizedPtr(req.Name),
		Color: sanitizedPtr(req.Color),
	})
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toTagResponse(tag)).Write(w)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Taxonomy.DeleteTag(r.Context(), userFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
