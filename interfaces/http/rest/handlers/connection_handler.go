package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/narulaskaran/social-graph/application/commands"
	"github.com/narulaskaran/social-graph/application/commands/bus"
	"github.com/narulaskaran/social-graph/application/queries"
	querybus "github.com/narulaskaran/social-graph/application/queries/bus"
	"github.com/narulaskaran/social-graph/pkg/common"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"github.com/narulaskaran/social-graph/pkg/utils"
)

// ConnectionHandler handles direct edge edits
type ConnectionHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errHandler: errHandler,
		logger:     logger,
	}
}

type connectionRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

func (h *ConnectionHandler) decode(w http.ResponseWriter, r *http.Request) (connectionRequest, bool) {
	var req connectionRequest
	err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes)
	if err == nil {
		err = utils.ValidateStruct(req)
	}
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return req, false
	}
	return req, true
}

// ListConnections handles GET /api/graphs/{graphID}/connections
func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	graphID := chi.URLParam(r, "graphID")
	if graphID == "" {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("graph id is required"))
		return
	}
	out, err := h.queryBus.Ask(r.Context(), queries.ListConnectionsQuery{GraphID: graphID})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, out)
}

// CreateConnection handles POST /api/graphs/{graphID}/connections
func (h *ConnectionHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	_, err := h.commandBus.Send(r.Context(), commands.CreateConnectionCommand{
		GraphID: chi.URLParam(r, "graphID"),
		Source:  req.Source,
		Target:  req.Target,
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondSuccess(w)
}

// DeleteConnection handles DELETE /api/graphs/{graphID}/connections
func (h *ConnectionHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	_, err := h.commandBus.Send(r.Context(), commands.DeleteConnectionCommand{
		GraphID: chi.URLParam(r, "graphID"),
		Source:  req.Source,
		Target:  req.Target,
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondSuccess(w)
}
