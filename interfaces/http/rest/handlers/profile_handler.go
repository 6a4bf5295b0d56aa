package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/narulaskaran/social-graph/application/queries"
	querybus "github.com/narulaskaran/social-graph/application/queries/bus"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/pkg/common"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

// ProfileHandler serves profile listings
type ProfileHandler struct {
	queryBus   *querybus.QueryBus
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(queryBus *querybus.QueryBus, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		queryBus:   queryBus,
		errHandler: errHandler,
		logger:     logger,
	}
}

type profilesResponse struct {
	Profiles []entities.Profile `json:"profiles"`
}

// ListGraphProfiles handles GET /api/graphs/{graphID}/profiles
func (h *ProfileHandler) ListGraphProfiles(w http.ResponseWriter, r *http.Request) {
	graphID := chi.URLParam(r, "graphID")
	if graphID == "" {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("graph id is required"))
		return
	}
	h.list(w, r, graphID)
}

// ListProfiles handles GET /api/profiles. The optional graph_id parameter
// scopes the listing to one graph.
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("graph_id"))
}

func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request, graphID string) {
	out, err := h.queryBus.Ask(r.Context(), queries.ListProfilesQuery{GraphID: graphID})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, profilesResponse{Profiles: out.([]entities.Profile)})
}
