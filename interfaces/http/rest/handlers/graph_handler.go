package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/narulaskaran/social-graph/application/commands"
	"github.com/narulaskaran/social-graph/application/commands/bus"
	"github.com/narulaskaran/social-graph/application/queries"
	querybus "github.com/narulaskaran/social-graph/application/queries/bus"
	"github.com/narulaskaran/social-graph/application/services"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/pkg/common"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

// GraphHandler handles graph lifecycle and ingestion requests
type GraphHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errHandler: errHandler,
		logger:     logger,
	}
}

type createGraphResponse struct {
	Graph    *entities.Graph `json:"graph"`
	ShareURL string          `json:"shareUrl"`
}

// CreateGraph handles POST /api/graphs
func (h *GraphHandler) CreateGraph(w http.ResponseWriter, r *http.Request) {
	out, err := h.commandBus.Send(r.Context(), commands.CreateGraphCommand{})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	res := out.(*commands.CreateGraphResult)
	common.RespondJSON(w, http.StatusCreated, createGraphResponse{Graph: res.Graph, ShareURL: res.SharePath})
}

// GetGraph handles GET /api/graphs/{graphID}
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	out, err := h.queryBus.Ask(r.Context(), queries.GetGraphBundleQuery{GraphID: chi.URLParam(r, "graphID")})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, out)
}

// DeleteGraph handles DELETE /api/graphs/{graphID}
func (h *GraphHandler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	if _, err := h.commandBus.Send(r.Context(), commands.DeleteGraphCommand{GraphID: chi.URLParam(r, "graphID")}); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondSuccess(w)
}

type addToGraphRequest struct {
	Self            services.Person `json:"self"`
	Connections     json.RawMessage `json:"connections"`
	ConnectEveryone bool            `json:"connectEveryone"`
}

type addToGraphResponse struct {
	Success bool `json:"success"`
	*services.AddToGraphResult
}

// AddToGraph handles POST /api/graphs/{graphID}/add
func (h *GraphHandler) AddToGraph(w http.ResponseWriter, r *http.Request) {
	var req addToGraphRequest
	if err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	people, err := decodeConnections(req.Connections)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	out, err := h.commandBus.Send(r.Context(), commands.AddToGraphCommand{
		GraphID:         chi.URLParam(r, "graphID"),
		Self:            req.Self,
		Connections:     people,
		ConnectEveryone: req.ConnectEveryone,
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, addToGraphResponse{
		Success:          true,
		AddToGraphResult: out.(*services.AddToGraphResult),
	})
}

// decodeConnections requires a JSON array. Entries that are not person
// objects become blank names, which ingestion skips and counts.
func decodeConnections(raw json.RawMessage) ([]services.Person, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, pkgerrors.NewValidationError("connections must be an array").WithDetail("field", "connections")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, pkgerrors.NewValidationError("connections must be an array").WithCause(err)
	}

	people := make([]services.Person, 0, len(entries))
	for _, entry := range entries {
		var p services.Person
		if err := json.Unmarshal(entry, &p); err != nil {
			p = services.Person{}
		}
		people = append(people, p)
	}
	return people, nil
}
