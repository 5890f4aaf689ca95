package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const serviceName = "phish-scorer"

// HTTPFilter exposes the scorer as a JSON API
type HTTPFilter struct {
	service        *core.PhishingService
	source         core.MessageSource
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
	listenAddr     string
	allowedOrigins []string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxBodyBytes   int64
	server         *http.Server
}

// NewHTTPFilter creates a new HTTP filter. source may be nil, in which case
// the mailbox route is not registered.
func NewHTTPFilter(
	service *core.PhishingService,
	source core.MessageSource,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	listenAddr string,
	allowedOrigins []string,
	readTimeout time.Duration,
	writeTimeout time.Duration,
	maxBodyBytes int64,
) *HTTPFilter {
	return &HTTPFilter{
		service:        service,
		source:         source,
		logger:         logger,
		textProcessor:  textProcessor,
		listenAddr:     listenAddr,
		allowedOrigins: allowedOrigins,
		readTimeout:    readTimeout,
		writeTimeout:   writeTimeout,
		maxBodyBytes:   maxBodyBytes,
	}
}

// checkRequest is the body of POST /api/check-email and /api/analyze
type checkRequest struct {
	Content     string `json:"content"`
	Subject     string `json:"subject"`
	From        string `json:"from"`
	Sender      string `json:"sender"`
	SenderEmail string `json:"sender_email"`

	Attachments []attachmentPayload `json:"attachments"`
}

// attachmentPayload carries base64 file content
type attachmentPayload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

func (r *checkRequest) sender() string {
	for _, s := range []string{r.From, r.Sender, r.SenderEmail} {
		if s != "" {
			return s
		}
	}
	return ""
}

// fetchedMessage pairs a mailbox message with its verdict
type fetchedMessage struct {
	*core.Message
	Result *core.ScoringResult `json:"result"`
}

// Handler builds the router with CORS and panic recovery applied
func (f *HTTPFilter) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(f.recoverMiddleware)

	r.HandleFunc("/", f.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/health", f.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/check-email", f.handleCheckEmail).Methods(http.MethodPost)
	r.HandleFunc("/api/analyze", f.handleAnalyze).Methods(http.MethodPost)
	if f.source != nil {
		r.HandleFunc("/api/fetch-emails", f.handleFetchEmails).Methods(http.MethodGet)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: f.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

// Start starts the HTTP filter service
func (f *HTTPFilter) Start() error {
	ln, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}

	f.server = &http.Server{
		Handler:      f.Handler(),
		ReadTimeout:  f.readTimeout,
		WriteTimeout: f.writeTimeout,
	}

	f.logger.Info("HTTP filter starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (f *HTTPFilter) Stop() error {
	if f.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}

// ProcessMessage analyzes a message without going through HTTP
func (f *HTTPFilter) ProcessMessage(ctx context.Context, msg *core.Message) (*core.Analysis, error) {
	return f.service.Analyze(ctx, msg)
}

func (f *HTTPFilter) handleIndex(w http.ResponseWriter, r *http.Request) {
	routes := []string{"GET /api/health", "POST /api/check-email", "POST /api/analyze"}
	if f.source != nil {
		routes = append(routes, "GET /api/fetch-emails")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": serviceName,
		"routes":  routes,
	})
}

func (f *HTTPFilter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "running",
		"service": serviceName,
	})
}

func (f *HTTPFilter) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	req, ok := f.decodeRequest(w, r)
	if !ok {
		return
	}

	result := f.service.Score(&core.Message{
		Sender:  req.From,
		Subject: req.Subject,
		Body:    req.Content,
	})
	writeJSON(w, http.StatusOK, result)
}

func (f *HTTPFilter) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := f.decodeRequest(w, r)
	if !ok {
		return
	}

	msg := f.messageFromRequest(req)

	analysis, err := f.service.Analyze(r.Context(), msg)
	if err != nil {
		f.logger.Error("Failed to analyze message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Analysis failed")
		return
	}

	f.logger.Info("Analyzed message",
		zap.String("id", analysis.ID),
		zap.Int("score", analysis.Score),
		zap.Bool("is_phishing", analysis.IsPhishing),
		zap.Bool("cached", analysis.Cached))

	writeJSON(w, http.StatusOK, analysis)
}

func (f *HTTPFilter) handleFetchEmails(w http.ResponseWriter, r *http.Request) {
	msgs, err := f.source.Fetch(r.Context())
	if err != nil {
		f.logger.Error("Failed to fetch emails", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch emails")
		return
	}

	out := make([]fetchedMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, fetchedMessage{Message: msg, Result: f.service.Score(msg)})
	}
	writeJSON(w, http.StatusOK, out)
}

// messageFromRequest fills a missing sender or subject from the headers when
// the content is a full MIME message, taking its attachments when none were sent
func (f *HTTPFilter) messageFromRequest(req *checkRequest) *core.Message {
	msg := &core.Message{
		Sender:  req.sender(),
		Subject: req.Subject,
		Body:    req.Content,
	}
	for _, att := range req.Attachments {
		msg.Attachments = append(msg.Attachments, core.NewAttachment(att.Filename, att.ContentType, att.Content))
	}
	if (msg.Sender != "" && msg.Subject != "") || !looksLikeMIME(req.Content) {
		return msg
	}

	parsed, err := ParseMessage([]byte(req.Content), f.textProcessor)
	if err != nil {
		f.logger.Debug("Content is not a MIME message", zap.Error(err))
		return msg
	}
	if msg.Sender == "" {
		msg.Sender = parsed.Sender
	}
	if msg.Subject == "" {
		msg.Subject = parsed.Subject
	}
	if len(msg.Attachments) == 0 {
		msg.Attachments = parsed.Attachments
	}
	msg.Body = parsed.Body
	msg.ID = parsed.ID
	return msg
}

// looksLikeMIME reports whether content starts with a header block
func looksLikeMIME(content string) bool {
	head, _, sep := splitHeader([]byte(content))
	if sep == nil {
		return false
	}
	for _, line := range splitLines(head) {
		if isHeader(line, "From") || isHeader(line, "Subject") {
			return true
		}
	}
	return false
}

func (f *HTTPFilter) decodeRequest(w http.ResponseWriter, r *http.Request) (*checkRequest, bool) {
	if f.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, f.maxBodyBytes)
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			f.logger.Debug("Rejected oversized request", zap.String("path", r.URL.Path), zap.Int64("limit", tooLarge.Limit))
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		f.logger.Debug("Rejected malformed request", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+strings.TrimPrefix(err.Error(), "json: "))
		return nil, false
	}
	return &req, true
}

func (f *HTTPFilter) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				f.logger.Error("Panic while handling request",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "Analysis failed")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
