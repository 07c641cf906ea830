package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/models"
	"github.com/comandas/backend/internal/normalizer"
)

func catalogKind(c *gin.Context) (db.CatalogKind, bool) {
	switch c.Param("kind") {
	case "products":
		return db.CatalogProducts, true
	case "routes":
		return db.CatalogRoutes, true
	default:
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "kind must be products or routes", nil)
		return "", false
	}
}

type importProductsRequest struct {
	Version  string `json:"version" binding:"required"`
	Products []struct {
		Name   string `json:"name" binding:"required"`
		Family int    `json:"family" binding:"required" validate:"min=1,max=6"`
	} `json:"products" binding:"required"`
}

type importRoutesRequest struct {
	Version string   `json:"version" binding:"required"`
	Routes  []string `json:"routes" binding:"required"`
}

// @Summary Import a catalog version
// @Description Loads a products or routes catalog as an inactive version; names are normalized on import
// @Tags catalogs
// @Accept json
// @Produce json
// @Param kind path string true "products or routes"
// @Success 201 {object} map[string]any
// @Failure 400 {object} apiError
// @Router /api/catalogs/{kind}/import [post]
func (h *Handler) ImportCatalog(c *gin.Context) {
	kind, ok := catalogKind(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if kind == db.CatalogProducts {
		var req importProductsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		if err := h.Validator.Struct(req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		seen := map[string]struct{}{}
		products := make([]models.Product, 0, len(req.Products))
		for _, p := range req.Products {
			norm := normalizer.Norm(p.Name)
			if norm == "" {
				continue
			}
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			products = append(products, models.Product{NormName: norm, Family: p.Family})
		}
		if len(products) == 0 {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "no usable products", nil)
			return
		}
		id, err := h.Store.InsertProductsCatalog(ctx, req.Version, products)
		if err != nil {
			if db.IsUniqueViolation(err) {
				writeError(c, http.StatusConflict, "DUPLICATE_VERSION", "catalog version already exists", nil)
				return
			}
			h.svcError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"catalog_id": id, "version": req.Version, "products": len(products)})
		return
	}

	var req importRoutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	seen := map[string]struct{}{}
	routes := make([]string, 0, len(req.Routes))
	for _, r := range req.Routes {
		norm := normalizer.Norm(r)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		routes = append(routes, norm)
	}
	if len(routes) == 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "no usable routes", nil)
		return
	}
	id, err := h.Store.InsertRoutesCatalog(ctx, req.Version, routes)
	if err != nil {
		if db.IsUniqueViolation(err) {
			writeError(c, http.StatusConflict, "DUPLICATE_VERSION", "catalog version already exists", nil)
			return
		}
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"catalog_id": id, "version": req.Version, "routes": len(routes)})
}

type activateCatalogRequest struct {
	Version string `json:"version" binding:"required"`
}

// @Summary Activate a catalog version
// @Tags catalogs
// @Accept json
// @Produce json
// @Param kind path string true "products or routes"
// @Param request body activateCatalogRequest true "version"
// @Success 200 {object} models.CatalogVersion
// @Router /api/catalogs/{kind}/activate [post]
func (h *Handler) ActivateCatalog(c *gin.Context) {
	kind, ok := catalogKind(c)
	if !ok {
		return
	}
	var req activateCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	cat, err := h.Store.ActivateCatalog(c.Request.Context(), kind, req.Version, time.Now().UTC())
	if err != nil {
		h.svcError(c, err)
		return
	}

	evType := models.EvProductsActive
	if kind == db.CatalogRoutes {
		evType = models.EvRoutesActive
	}
	ev := events.New(evType, "catalog", cat.Version, map[string]any{"catalog_id": cat.ID})
	if a := actor(c); a != "" {
		ev.ActorUser = &a
	}
	h.Bus.Publish(c.Request.Context(), ev)
	c.JSON(http.StatusOK, cat)
}

// @Summary List catalog versions
// @Tags catalogs
// @Produce json
// @Param kind path string true "products or routes"
// @Success 200 {array} models.CatalogVersion
// @Router /api/catalogs/{kind} [get]
func (h *Handler) ListCatalogs(c *gin.Context) {
	kind, ok := catalogKind(c)
	if !ok {
		return
	}
	out, err := h.Store.ListCatalogVersions(c.Request.Context(), kind)
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
