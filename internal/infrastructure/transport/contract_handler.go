package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contractforge/app/usecase"
	"contractforge/internal/domain/entity"
)

const (
	healthMessage = "Smart contract backend is running"

	errGenerateFailed = "Failed to generate contract"
	errCompileFailed  = "Compilation failed"
	errBadBody        = "invalid request body"
)

type ContractHandler struct {
	generation usecase.GenerationUsecase
	compile    usecase.CompileUsecase
	contracts  usecase.ContractUsecase
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

func NewContractHandler(
	generation usecase.GenerationUsecase,
	compile usecase.CompileUsecase,
	contracts usecase.ContractUsecase,
	logger *slog.Logger,
) *ContractHandler {
	return &ContractHandler{
		generation: generation,
		compile:    compile,
		contracts:  contracts,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *ContractHandler) RegisterRoutes(r *mux.Router) {
	r.Use(RequestLogger(h.logger))

	r.HandleFunc("/health", withMetrics(h.handleHealth)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generate-contract", withMetrics(h.handleGenerate)).Methods(http.MethodPost)
	api.HandleFunc("/compile-contract", withMetrics(h.handleCompile)).Methods(http.MethodPost)
	api.HandleFunc("/compile-contract/stream", withMetrics(h.handleCompileStream)).Methods(http.MethodGet)
	api.HandleFunc("/contracts", withMetrics(h.handleListContracts)).Methods(http.MethodGet)
	api.HandleFunc("/contracts", withMetrics(h.handleCreateContract)).Methods(http.MethodPost)

	// Prometheus
	r.Handle("/metrics", promhttp.Handler())
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, summary string, details string) {
	writeJSON(w, code, errorResponse{Success: false, Error: summary, Details: details})
}

// decodeBody treats an empty body as an empty request so that missing
// fields are reported by validation rather than as a parse error.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// GET /health
func (h *ContractHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": healthMessage,
	})
}

type generateResponse struct {
	Success bool `json:"success"`
	*entity.GenerationResult
}

// POST /api/generate-contract
func (h *ContractHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req entity.GenerationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errBadBody, err.Error())
		return
	}

	result, err := h.generation.Generate(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, entity.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	case errors.Is(err, entity.ErrGeneratorNotConfigured):
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	case err != nil:
		h.logger.Error("generate contract failed", "err", err)
		writeError(w, http.StatusInternalServerError, errGenerateFailed, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Success: true, GenerationResult: result})
}

type compileResponse struct {
	Success bool `json:"success"`
	*entity.CompileResult
}

// POST /api/compile-contract
func (h *ContractHandler) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req entity.CompileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errBadBody, err.Error())
		return
	}

	result, err := h.compile.Compile(r.Context(), req, nil)
	if err != nil {
		code, summary, details := compileFailure(err)
		writeError(w, code, summary, details)
		return
	}

	writeJSON(w, http.StatusOK, compileResponse{Success: true, CompileResult: result})
}

// compileFailure maps a compile error to status, summary and details.
func compileFailure(err error) (int, string, string) {
	if errors.Is(err, entity.ErrEmptySource) || errors.Is(err, entity.ErrInvalidContractName) {
		return http.StatusBadRequest, err.Error(), ""
	}
	var cerr *usecase.CompileError
	if errors.As(err, &cerr) {
		return http.StatusInternalServerError, errCompileFailed, cerr.Details()
	}
	return http.StatusInternalServerError, errCompileFailed, err.Error()
}

// GET /api/contracts
func (h *ContractHandler) handleListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.contracts.ListContracts(r.Context())
	if err != nil {
		h.logger.Error("list contracts failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contracts": contracts})
}

type createContractReq struct {
	Name     string          `json:"name"`
	Source   string          `json:"source"`
	ABI      json.RawMessage `json:"abi,omitempty"`
	Bytecode string          `json:"bytecode,omitempty"`
}

// POST /api/contracts
func (h *ContractHandler) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	if !h.contracts.Configured() {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Contract creation endpoint"})
		return
	}

	var req createContractReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errBadBody, err.Error())
		return
	}
	if req.Name != "" && !entity.ValidContractName(req.Name) {
		writeError(w, http.StatusBadRequest, entity.ErrInvalidContractName.Error(), "")
		return
	}

	contract, err := h.contracts.CreateContract(r.Context(), req.Name, req.Source, req.ABI, req.Bytecode)
	switch {
	case errors.Is(err, entity.ErrEmptySource):
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	case err != nil:
		h.logger.Error("create contract failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to save contract", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Contract saved",
		"id":      contract.ID,
	})
}
