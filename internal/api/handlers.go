package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/explain"
	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/queue"
)

// ExplainService is the service surface the handlers consume.
type ExplainService interface {
	Explain(ctx context.Context, rawTopic string, opts explain.Options) (*explain.Response, error)
	RequestVerification(ctx context.Context, rawTopic, priority string) (*model.VerificationJob, error)
	GetVerificationStatus(ctx context.Context, jobID string) (*model.VerificationJob, error)
	TopExplanations(ctx context.Context, limit int) ([]model.Explanation, error)
}

type explainRequest struct {
	Topic          string `json:"topic"`
	PreferredModel string `json:"preferred_model,omitempty"`
	ForceVerify    bool   `json:"force_verify,omitempty"`
}

type verifyRequest struct {
	Topic    string `json:"topic"`
	Priority string `json:"priority,omitempty"`
}

type modelStatus struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Cost        int    `json:"cost"`
	Tier        string `json:"tier"`
	Quarantined bool   `json:"quarantined"`
	Calls       int64  `json:"calls_24h"`
	Tokens      int64  `json:"tokens_24h"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	resp, err := s.svc.Explain(r.Context(), req.Topic, explain.Options{
		PreferredModel: req.PreferredModel,
		ForceVerify:    req.ForceVerify,
	})
	if err != nil {
		switch {
		case eris.Is(err, explain.ErrInvalidTopic):
			writeError(w, http.StatusBadRequest, "topic is empty or invalid")
		default:
			zap.L().Error("explain request failed", zap.String("topic", req.Topic), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "unable to generate explanation, try again later")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = queue.PriorityNormal
	}

	job, err := s.svc.RequestVerification(r.Context(), req.Topic, priority)
	if err != nil {
		switch {
		case eris.Is(err, explain.ErrInvalidTopic):
			writeError(w, http.StatusBadRequest, "topic is empty or invalid")
		case eris.Is(err, explain.ErrTopicNotFound):
			writeError(w, http.StatusNotFound, "no explanation stored for topic")
		default:
			zap.L().Error("verification request failed", zap.String("topic", req.Topic), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "unable to queue verification")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.svc.GetVerificationStatus(r.Context(), jobID)
	if err != nil {
		if eris.Is(err, explain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "verification job not found")
			return
		}
		zap.L().Error("job status lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "job status unavailable")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	chain := s.chain.Chain()
	names := make([]string, len(chain))
	for i, mc := range chain {
		names[i] = mc.Name
	}

	var usage map[string]struct{ calls, tokens int64 }
	if s.usage != nil {
		usage = make(map[string]struct{ calls, tokens int64 }, len(names))
		for _, u := range s.usage.ModelCounters(r.Context(), names) {
			usage[u.Model] = struct{ calls, tokens int64 }{u.Calls, u.Tokens}
		}
	}

	q := s.chain.Quarantine()
	out := make([]modelStatus, len(chain))
	for i, mc := range chain {
		ms := modelStatus{
			Name:        mc.Name,
			Provider:    string(mc.Provider),
			Cost:        mc.Cost,
			Tier:        string(mc.Tier),
			Quarantined: q.IsQuarantined(mc.Name),
		}
		if u, ok := usage[mc.Name]; ok {
			ms.Calls = u.calls
			ms.Tokens = u.tokens
		}
		out[i] = ms
	}

	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

func (s *Server) handleTopExplanations(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	top, err := s.svc.TopExplanations(r.Context(), limit)
	if err != nil {
		zap.L().Error("top explanations lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if top == nil {
		top = []model.Explanation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"explanations": top})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["store"] = err.Error()
		}
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
