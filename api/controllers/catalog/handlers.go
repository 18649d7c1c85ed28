package catalog

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/distrihogar/storefront-backend/api/responses"
	catalogsvc "github.com/distrihogar/storefront-backend/internal/catalog"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/distrihogar/storefront-backend/pkg/logger"
)

// ProductList serves the storefront catalog listing. Filters arrive as query
// params; every distinct filter combination is cached separately.
func ProductList(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		filter, err := filterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.ListProducts(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductList(products))
	}
}

// ProductFetch serves a single product by id.
func ProductFetch(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := idFromPath(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductView(product))
	}
}

// CategoryList serves all categories ordered by name.
func CategoryList(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCategoryList(categories))
	}
}

// CategoryFetch serves a single category by id.
func CategoryFetch(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		categoryID, err := idFromPath(r, "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.GetCategory(r.Context(), categoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCategoryView(category))
	}
}

func filterFromQuery(r *http.Request) (catalogsvc.ProductFilter, error) {
	filter := catalogsvc.ProductFilter{ActiveOnly: true}

	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("categoryId")); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
		}
		filter.CategoryID = &categoryID
	}

	switch strings.TrimSpace(query.Get("featured")) {
	case "":
	case "true":
		featured := true
		filter.Featured = &featured
	case "false":
		featured := false
		filter.Featured = &featured
	default:
		return filter, pkgerrors.New(pkgerrors.CodeValidation, "featured must be true or false")
	}

	return filter, nil
}

func idFromPath(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, param+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}
