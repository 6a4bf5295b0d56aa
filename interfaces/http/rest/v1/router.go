// Package v1 serves the pre-graph-scoping API: global listings of every
// profile and connection regardless of graph.
package v1

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/narulaskaran/social-graph/application/queries"
	querybus "github.com/narulaskaran/social-graph/application/queries/bus"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/pkg/common"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

// Prefix is the path prefix of every v1 route
const Prefix = "/api/v1"

type handler struct {
	queryBus   *querybus.QueryBus
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewRouter creates the v1 API router
func NewRouter(queryBus *querybus.QueryBus, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *mux.Router {
	h := &handler{queryBus: queryBus, errHandler: errHandler, logger: logger.Named("v1")}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(errHandler.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(errHandler.MethodNotAllowed)

	v1 := router.PathPrefix(Prefix).Subrouter()
	v1.Use(versionHeaders)
	v1.HandleFunc("/profiles", h.listProfiles).Methods(http.MethodGet)
	v1.HandleFunc("/graph", h.globalGraph).Methods(http.MethodGet)

	return router
}

// versionHeaders marks responses as coming from the deprecated API
func versionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v1")
		w.Header().Set("X-API-Deprecated", "true")
		next.ServeHTTP(w, r)
	})
}

func (h *handler) profiles(r *http.Request) ([]entities.Profile, error) {
	out, err := h.queryBus.Ask(r.Context(), queries.ListProfilesQuery{})
	if err != nil {
		return nil, err
	}
	return out.([]entities.Profile), nil
}

func (h *handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}

func (h *handler) globalGraph(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles(r)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	out, err := h.queryBus.Ask(r.Context(), queries.ListConnectionsQuery{})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"profiles":    profiles,
		"connections": out.([]entities.Connection),
	})
}
