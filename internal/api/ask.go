package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
)

const maxAskBodyBytes = 64 << 10

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Question    string        `json:"question"`
	SQL         string        `json:"sql"`
	RawResponse string        `json:"raw_response"`
	Result      resultPayload `json:"result"`
}

// resultPayload mirrors query.Result: exactly one of the success fields or
// Error is meaningful, as told by Status.
type resultPayload struct {
	Status     string   `json:"status"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int      `json:"row_count"`
	Error      string   `json:"error,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

type historyResponse struct {
	Turns []conversation.Turn `json:"turns"`
}

type schemaResponse struct {
	Tables []schema.Table `json:"tables"`
	Text   string         `json:"text"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Session == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSION_NOT_CONFIGURED", "conversation session is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	exchange, err := deps.Session.Ask(r.Context(), question)
	if errors.Is(err, pipeline.ErrTranslation) {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATION_FAILED", err.Error(), true, nil)
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", "failed to complete the turn", false, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Question:    exchange.Question,
		SQL:         exchange.Statement,
		RawResponse: exchange.RawResponse,
		Result:      newResultPayload(exchange.Result),
	})
}

func newResultPayload(result query.Result) resultPayload {
	payload := resultPayload{DurationMs: result.Duration.Milliseconds()}
	if result.Failed() {
		payload.Status = "failure"
		payload.Error = result.Message()
		return payload
	}
	payload.Status = "success"
	payload.Columns = result.Columns()
	payload.Rows = result.Rows()
	payload.RowCount = result.RowCount()
	return payload
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Session == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSION_NOT_CONFIGURED", "conversation session is not configured", false, nil)
		return
	}
	turns := deps.Session.History()
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Turns: turns})
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Session == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSION_NOT_CONFIGURED", "conversation session is not configured", false, nil)
		return
	}
	described := deps.Session.Schema()
	tables := described.Tables
	if tables == nil {
		tables = []schema.Table{}
	}
	writeJSON(w, http.StatusOK, schemaResponse{Tables: tables, Text: deps.Session.SchemaText()})
}
