package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/card-registry/internal/api/shared/dto"
	"github.com/feral-file/card-registry/internal/api/shared/executor"
	"github.com/feral-file/card-registry/internal/domain"
)

// Handler defines the interface for REST API handlers
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// GetTotalSupply returns the number of minted tokens
	// GET /api/v1/supply
	GetTotalSupply(c *gin.Context)

	// GetTokenOwner returns the owner of a token
	// GET /api/v1/tokens/:token_id/owner
	GetTokenOwner(c *gin.Context)

	// GetTokenURI returns the metadata URI of a token
	// GET /api/v1/tokens/:token_id/uri?resolve=true
	GetTokenURI(c *gin.Context)

	// GetNonce returns the last used authorization nonce of an address
	// GET /api/v1/accounts/:address/nonce
	GetNonce(c *gin.Context)

	// Simulate runs a call without committing and reports the addresses that must authorize it
	// POST /api/v1/simulations
	Simulate(c *gin.Context)

	// Invoke executes a signed call
	// POST /api/v1/invocations
	Invoke(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	contract string
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(contract string, exec executor.Executor) Handler {
	return &handler{
		contract: contract,
		executor: exec,
	}
}

func (h *handler) GetTotalSupply(c *gin.Context) {
	resp, err := h.executor.TotalSupply(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) GetTokenOwner(c *gin.Context) {
	tokenID, ok := parseTokenID(c)
	if !ok {
		return
	}

	resp, err := h.executor.OwnerOf(c.Request.Context(), tokenID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) GetTokenURI(c *gin.Context) {
	tokenID, ok := parseTokenID(c)
	if !ok {
		return
	}

	resolve := false
	if raw := c.Query("resolve"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondValidationError(c, "resolve must be a boolean")
			return
		}
		resolve = v
	}

	resp, err := h.executor.TokenURI(c.Request.Context(), tokenID, resolve)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) GetNonce(c *gin.Context) {
	address, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	resp, err := h.executor.Nonce(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) Simulate(c *gin.Context) {
	var req dto.SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	receipt, err := h.executor.Simulate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *handler) Invoke(c *gin.Context) {
	var req dto.InvocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	receipt, err := h.executor.Invoke(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:   "ok",
		Contract: h.contract,
	})
}

// parseTokenID reads the :token_id path parameter, responding 400 when it is not a u64
func parseTokenID(c *gin.Context) (uint64, bool) {
	tokenID, err := strconv.ParseUint(c.Param("token_id"), 10, 64)
	if err != nil {
		respondValidationError(c, "token_id must be an unsigned 64-bit integer")
		return 0, false
	}
	return tokenID, true
}
