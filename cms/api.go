package cms

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/middlewares"
	"github.com/dmitrymomot/trellis/pkg/role"
)

// APIPrefix is the mount point of the admin JSON endpoints.
const APIPrefix = "/admin/api"

// apiHandler serves the admin JSON endpoints next to the module routes.
type apiHandler struct {
	cms    *CMS
	postID trellis.Extractor
}

// API returns the handler mounting the admin JSON endpoints:
//
//	GET /admin/api/runtime-routes   current runtime route table (admin)
//	GET /admin/api/posts/{id}       a single post (editor)
//	GET /admin/api/posts?id=...     same lookup by query parameter
func (c *CMS) API() trellis.Handler {
	return &apiHandler{
		cms:    c,
		postID: trellis.NewExtractor(trellis.FromParam("id"), trellis.FromQuery("id")),
	}
}

func (h *apiHandler) Routes(r trellis.Router) {
	resolver := Resolver(h.cms.store)
	r.Route(APIPrefix, func(r trellis.Router) {
		r.Use(middlewares.Authorize(role.Editor, resolver))
		r.GET("/runtime-routes", h.runtimeRoutes, middlewares.Authorize(role.Admin, resolver))
		r.GET("/posts", h.post)
		r.GET("/posts/{id}", h.post)
	})
}

func (h *apiHandler) runtimeRoutes(c trellis.Context) error {
	routes := h.cms.table.Routes()
	if routes == nil {
		routes = []trellis.RuntimeRoute{}
	}
	return c.JSON(http.StatusOK, routes)
}

func (h *apiHandler) post(c trellis.Context) error {
	id, ok := h.postID.Extract(c)
	if !ok {
		return trellis.ErrBadRequest("post id is required")
	}
	p, err := h.cms.store.Post(c.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return trellis.ErrNotFound("post not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
