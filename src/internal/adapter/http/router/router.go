package router

import "net/http"

type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler)
}

type Controllers struct {
	Account     RouteRegistrar
	Transfer    RouteRegistrar
	Transaction RouteRegistrar
	Audit       RouteRegistrar
	Health      RouteRegistrar
}

func New(controllers Controllers, authMiddleware func(http.Handler) http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	registerSwaggerRoutes(mux)

	for _, registrar := range []RouteRegistrar{
		controllers.Account,
		controllers.Transfer,
		controllers.Transaction,
		controllers.Audit,
		controllers.Health,
	} {
		if registrar != nil {
			registrar.RegisterRoutes(mux, authMiddleware)
		}
	}

	return mux
}
