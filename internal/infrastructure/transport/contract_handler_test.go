package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"contractforge/app/usecase"
	"contractforge/internal/domain/entity"
)

type fakeGeneration struct {
	configured bool
	result     *entity.GenerationResult
	err        error
}

func (f *fakeGeneration) Configured() bool { return f.configured }

func (f *fakeGeneration) Generate(ctx context.Context, prompt string) (*entity.GenerationResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, entity.ErrEmptyPrompt
	}
	if !f.configured {
		return nil, entity.ErrGeneratorNotConfigured
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCompile struct {
	lines  []string
	result *entity.CompileResult
	err    error
	got    entity.CompileRequest
}

func (f *fakeCompile) Compile(ctx context.Context, req entity.CompileRequest, onLine func(string)) (*entity.CompileResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	f.got = req
	if onLine != nil {
		for _, l := range f.lines {
			onLine(l)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeContracts struct {
	configured bool
	list       []*entity.Contract
	saved      []*entity.Contract
}

func (f *fakeContracts) Configured() bool { return f.configured }

func (f *fakeContracts) ListContracts(ctx context.Context) ([]*entity.Contract, error) {
	if f.list == nil {
		return []*entity.Contract{}, nil
	}
	return f.list, nil
}

func (f *fakeContracts) CreateContract(ctx context.Context, name, source string, abi json.RawMessage, bytecode string) (*entity.Contract, error) {
	if strings.TrimSpace(source) == "" {
		return nil, entity.ErrEmptySource
	}
	c := entity.NewContract(name, source)
	c.ABI = abi
	c.Bytecode = bytecode
	f.saved = append(f.saved, c)
	return c, nil
}

func newTestRouter(gen *fakeGeneration, comp *fakeCompile, contracts *fakeContracts) *mux.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewContractHandler(gen, comp, contracts, logger)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{})

	rec, body := doJSON(t, r, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "OK" || body["message"] == "" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestGenerateContract(t *testing.T) {
	tests := []struct {
		name       string
		gen        *fakeGeneration
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing prompt",
			gen:        &fakeGeneration{configured: true},
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  entity.ErrEmptyPrompt.Error(),
		},
		{
			name:       "empty body",
			gen:        &fakeGeneration{configured: true},
			body:       ``,
			wantStatus: http.StatusBadRequest,
			wantError:  entity.ErrEmptyPrompt.Error(),
		},
		{
			name:       "malformed body",
			gen:        &fakeGeneration{configured: true},
			body:       `{"prompt":`,
			wantStatus: http.StatusBadRequest,
			wantError:  errBadBody,
		},
		{
			name:       "no api key",
			gen:        &fakeGeneration{},
			body:       `{"prompt":"an ERC20 token"}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "OpenAI API key not configured",
		},
		{
			name:       "provider failure",
			gen:        &fakeGeneration{configured: true, err: errors.New("openai api error: 429 - rate limited")},
			body:       `{"prompt":"an ERC20 token"}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  errGenerateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(tt.gen, &fakeCompile{}, &fakeContracts{})
			rec, body := doJSON(t, r, http.MethodPost, "/api/generate-contract", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%v)", tt.wantStatus, rec.Code, body)
			}
			if body["success"] != false {
				t.Errorf("expected success=false, got %v", body["success"])
			}
			if body["error"] != tt.wantError {
				t.Errorf("expected error %q, got %v", tt.wantError, body["error"])
			}
		})
	}

	t.Run("provider failure carries details", func(t *testing.T) {
		gen := &fakeGeneration{configured: true, err: errors.New("openai api error: 429 - rate limited")}
		r := newTestRouter(gen, &fakeCompile{}, &fakeContracts{})
		_, body := doJSON(t, r, http.MethodPost, "/api/generate-contract", `{"prompt":"x"}`)
		if !strings.Contains(body["details"].(string), "429") {
			t.Errorf("details do not carry the provider error: %v", body["details"])
		}
	})

	t.Run("health stays up without a key", func(t *testing.T) {
		r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{})
		rec, _ := doJSON(t, r, http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		gen := &fakeGeneration{configured: true, result: &entity.GenerationResult{
			Contract:     "contract Token {}",
			Explanation:  "A token.",
			Prompt:       "an ERC20 token",
			ContractName: "Token",
		}}
		r := newTestRouter(gen, &fakeCompile{}, &fakeContracts{})
		rec, body := doJSON(t, r, http.MethodPost, "/api/generate-contract", `{"prompt":"an ERC20 token"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body["success"] != true || body["contract"] != "contract Token {}" ||
			body["explanation"] != "A token." || body["prompt"] != "an ERC20 token" ||
			body["contractName"] != "Token" {
			t.Errorf("unexpected body %v", body)
		}
	})
}

func TestCompileContract(t *testing.T) {
	okResult := &entity.CompileResult{
		ABI:          json.RawMessage(`[{"type":"function","name":"ping","inputs":[],"outputs":[],"stateMutability":"pure"}]`),
		Bytecode:     "0x6080604052",
		ContractName: "Token",
	}

	t.Run("missing code", func(t *testing.T) {
		r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{})
		rec, body := doJSON(t, r, http.MethodPost, "/api/compile-contract", `{"contractName":"Token"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if body["error"] != entity.ErrEmptySource.Error() {
			t.Errorf("unexpected error %v", body["error"])
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{})
		rec, _ := doJSON(t, r, http.MethodPost, "/api/compile-contract", `{"contractCode":"contract X {}","contractName":"../../x"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("success with default name", func(t *testing.T) {
		comp := &fakeCompile{result: okResult}
		r := newTestRouter(&fakeGeneration{}, comp, &fakeContracts{})
		rec, body := doJSON(t, r, http.MethodPost, "/api/compile-contract", `{"contractCode":"contract GeneratedContract {}"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%v)", rec.Code, body)
		}
		if comp.got.ContractName != entity.DefaultContractName {
			t.Errorf("expected default name, got %q", comp.got.ContractName)
		}
		if body["success"] != true || body["bytecode"] != "0x6080604052" {
			t.Errorf("unexpected body %v", body)
		}
		abi, ok := body["abi"].([]interface{})
		if !ok || len(abi) != 1 {
			t.Errorf("abi is not the artifact array: %v", body["abi"])
		}
	})

	t.Run("compiler failure", func(t *testing.T) {
		comp := &fakeCompile{err: &usecase.CompileError{
			Stage:  "compile",
			Output: "ParserError: Expected ';' but got '}'",
			Err:    errors.New("npx failed: exit status 1"),
		}}
		r := newTestRouter(&fakeGeneration{}, comp, &fakeContracts{})
		rec, body := doJSON(t, r, http.MethodPost, "/api/compile-contract", `{"contractCode":"contract Token {","contractName":"Token"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if body["error"] != errCompileFailed {
			t.Errorf("unexpected error %v", body["error"])
		}
		if !strings.Contains(body["details"].(string), "ParserError") {
			t.Errorf("details do not carry compiler output: %v", body["details"])
		}
	})
}

func TestContracts(t *testing.T) {
	t.Run("list without catalogue", func(t *testing.T) {
		r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{})
		rec, body := doJSON(t, r, http.MethodGet, "/api/contracts", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		list, ok := body["contracts"].([]interface{})
		if !ok || len(list) != 0 {
			t.Errorf("expected empty contracts list, got %v", body["contracts"])
		}
	})

	t.Run("create without catalogue", func(t *testing.T) {
		r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{})
		rec, body := doJSON(t, r, http.MethodPost, "/api/contracts", `{}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body["message"] == "" || body["message"] == nil {
			t.Errorf("expected message, got %v", body)
		}
	})

	t.Run("create and list with catalogue", func(t *testing.T) {
		contracts := &fakeContracts{configured: true}
		r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, contracts)

		rec, body := doJSON(t, r, http.MethodPost, "/api/contracts", `{"name":"Token","source":"contract Token {}","bytecode":"0x60"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%v)", rec.Code, body)
		}
		if len(contracts.saved) != 1 || body["id"] != contracts.saved[0].ID {
			t.Fatalf("contract not saved: %v", body)
		}

		contracts.list = contracts.saved
		_, body = doJSON(t, r, http.MethodGet, "/api/contracts", "")
		list := body["contracts"].([]interface{})
		if len(list) != 1 || list[0].(map[string]interface{})["name"] != "Token" {
			t.Errorf("unexpected list %v", list)
		}
	})

	t.Run("create rejects missing source", func(t *testing.T) {
		r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{configured: true})
		rec, _ := doJSON(t, r, http.MethodPost, "/api/contracts", `{"name":"Token"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestMethodNotAllowed(t *testing.T) {
	r := newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{})
	rec, _ := doJSON(t, r, http.MethodDelete, "/api/contracts", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/compile-contract/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return frames
		}
		var f map[string]interface{}
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
			t.Fatalf("decode frame %q: %v", data, err)
		}
		frames = append(frames, f)
	}
}

func TestCompileStream(t *testing.T) {
	t.Run("logs then result", func(t *testing.T) {
		comp := &fakeCompile{
			lines: []string{"Compiling 1 file with 0.8.20", "Compiled 1 Solidity file successfully"},
			result: &entity.CompileResult{
				ABI:          json.RawMessage(`[]`),
				Bytecode:     "0x6080",
				ContractName: "Token",
			},
		}
		srv := httptest.NewServer(newTestRouter(&fakeGeneration{}, comp, &fakeContracts{}))
		defer srv.Close()

		conn := dialStream(t, srv)
		if err := conn.WriteJSON(entity.CompileRequest{ContractCode: "contract Token {}", ContractName: "Token"}); err != nil {
			t.Fatalf("write request: %v", err)
		}

		frames := readFrames(t, conn)
		if len(frames) != 3 {
			t.Fatalf("expected 3 frames, got %d: %v", len(frames), frames)
		}
		if frames[0]["type"] != frameLog || frames[0]["line"] != "Compiling 1 file with 0.8.20" {
			t.Errorf("unexpected first frame %v", frames[0])
		}
		last := frames[2]
		if last["type"] != frameResult || last["contractName"] != "Token" || last["bytecode"] != "0x6080" {
			t.Errorf("unexpected result frame %v", last)
		}
	})

	t.Run("error frame", func(t *testing.T) {
		comp := &fakeCompile{err: &usecase.CompileError{Stage: "compile", Output: "ParserError", Err: errors.New("exit status 1")}}
		srv := httptest.NewServer(newTestRouter(&fakeGeneration{}, comp, &fakeContracts{}))
		defer srv.Close()

		conn := dialStream(t, srv)
		if err := conn.WriteJSON(entity.CompileRequest{ContractCode: "contract Token {", ContractName: "Token"}); err != nil {
			t.Fatalf("write request: %v", err)
		}

		frames := readFrames(t, conn)
		if len(frames) != 1 {
			t.Fatalf("expected 1 frame, got %v", frames)
		}
		if frames[0]["type"] != frameError || frames[0]["error"] != errCompileFailed {
			t.Errorf("unexpected frame %v", frames[0])
		}
		if !strings.Contains(frames[0]["details"].(string), "ParserError") {
			t.Errorf("details missing compiler output: %v", frames[0])
		}
	})

	t.Run("malformed request", func(t *testing.T) {
		srv := httptest.NewServer(newTestRouter(&fakeGeneration{}, &fakeCompile{}, &fakeContracts{}))
		defer srv.Close()

		conn := dialStream(t, srv)
		if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
			t.Fatalf("write: %v", err)
		}
		frames := readFrames(t, conn)
		if len(frames) != 1 || frames[0]["type"] != frameError {
			t.Fatalf("expected a single error frame, got %v", frames)
		}
	})
}
