package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/service"
	"github.com/kirinyoku/quicktix/internal/service/catalog"
)

func catalogScope(c *gin.Context) (catalog.Actor, domain.CatalogKind, bool) {
	id, _ := identity(c)

	kind, err := catalog.ParseKind(c.Param("kind"))
	if err != nil {
		respondErr(c, err)
		return catalog.Actor{}, "", false
	}

	return catalog.Actor{UserID: id.UserID, Admin: id.Role == domain.RoleAdmin}, kind, true
}

// @Summary  List my catalog items of a kind
// @Param    kind  path  string  true  "ticket-types | instructors | performers | speakers"
// @Success  200  {array}  domain.CatalogItem
// @Security BearerAuth
// @Router   /catalog/{kind} [get]
func handleListCatalog(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, kind, ok := catalogScope(c)
		if !ok {
			return
		}

		items, err := svcs.Catalog.List(c.Request.Context(), actor, kind)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// @Summary  Create a catalog item
// @Param    kind  path  string         true  "catalog kind"
// @Param    req   body  catalog.Input  true  "payload"
// @Success  201  {object}  domain.CatalogItem
// @Security BearerAuth
// @Router   /catalog/{kind} [post]
func handleCreateCatalog(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, kind, ok := catalogScope(c)
		if !ok {
			return
		}

		var in catalog.Input
		if !bindJSON(c, &in) {
			return
		}

		item, err := svcs.Catalog.Create(c.Request.Context(), actor, kind, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// @Summary  Get a catalog item
// @Param    kind  path  string  true  "catalog kind"
// @Param    id    path  int     true  "item id"
// @Success  200  {object}  domain.CatalogItem
// @Security BearerAuth
// @Router   /catalog/{kind}/{id} [get]
func handleGetCatalog(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, kind, ok := catalogScope(c)
		if !ok {
			return
		}
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		item, err := svcs.Catalog.Get(c.Request.Context(), actor, kind, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// @Summary  Edit a catalog item
// @Param    kind  path  string         true  "catalog kind"
// @Param    id    path  int            true  "item id"
// @Param    req   body  catalog.Input  true  "payload"
// @Success  200  {object}  domain.CatalogItem
// @Security BearerAuth
// @Router   /catalog/{kind}/{id} [put]
func handleUpdateCatalog(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, kind, ok := catalogScope(c)
		if !ok {
			return
		}
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var in catalog.Input
		if !bindJSON(c, &in) {
			return
		}

		item, err := svcs.Catalog.Update(c.Request.Context(), actor, kind, id, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// @Summary  Activate or deactivate a catalog item
// @Param    kind  path  string  true  "catalog kind"
// @Param    id    path  int     true  "item id"
// @Success  204
// @Security BearerAuth
// @Router   /catalog/{kind}/{id}/activate [post]
// @Router   /catalog/{kind}/{id}/deactivate [post]
func handleSetCatalogStatus(svcs *service.Services, active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, kind, ok := catalogScope(c)
		if !ok {
			return
		}
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		set := svcs.Catalog.Deactivate
		if active {
			set = svcs.Catalog.Activate
		}

		if err := set(c.Request.Context(), actor, kind, id); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
