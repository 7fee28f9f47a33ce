package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"img-compress-go/internal/codec"
	"img-compress-go/internal/compressor"
	"img-compress-go/internal/config"
	"img-compress-go/internal/search"
	"img-compress-go/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	registry   *codec.Registry
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current operation state
	operationMutex sync.RWMutex
	isRunning      bool
	currentStats   *statistics.Statistics
	cancelRun      context.CancelFunc
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CompressRequest mirrors the CLI surface for one web-triggered run.
// Unset fields fall back to the server configuration.
type CompressRequest struct {
	InputPath       string `json:"input_path"`
	OutputDirectory string `json:"output_directory,omitempty"`
	Format          string `json:"format,omitempty"`
	TargetKB        int    `json:"target_kb"`
	MinQuality      int    `json:"min_quality,omitempty"`
	MaxQuality      int    `json:"max_quality,omitempty"`
	Force           bool   `json:"force,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		registry:  codec.NewRegistry(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/formats", s.handleFormats).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Static files
	s.router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir("web/static/"))),
	)

	// Main page
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, "web/templates/index.html")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	stats := s.currentStats
	s.operationMutex.RUnlock()

	var statsData interface{}
	if stats != nil {
		statsData = map[string]interface{}{
			"summary": stats.GetSummary(),
			"files": map[string]interface{}{
				"found":       atomic.LoadInt64(&stats.FilesFound),
				"processed":   atomic.LoadInt64(&stats.FilesProcessed),
				"compressed":  atomic.LoadInt64(&stats.FilesCompressed),
				"best_effort": atomic.LoadInt64(&stats.FilesBestEffort),
				"forced":      atomic.LoadInt64(&stats.FilesForced),
				"skipped":     atomic.LoadInt64(&stats.FilesSkipped),
				"infeasible":  atomic.LoadInt64(&stats.FilesInfeasible),
				"errors":      atomic.LoadInt64(&stats.FilesWithErrors),
			},
			"probes": atomic.LoadInt64(&stats.TotalProbes),
		}
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"statistics": statsData,
		},
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    s.registry.Available(),
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.InputPath == "" {
		s.writeError(w, "Input path is required", http.StatusBadRequest)
		return
	}
	if req.TargetKB <= 0 {
		s.writeError(w, "Target KB must be positive", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(req.InputPath); err != nil {
		s.writeError(w, "Input file does not exist", http.StatusBadRequest)
		return
	}

	// Check if already running
	s.operationMutex.RLock()
	if s.isRunning {
		s.operationMutex.RUnlock()
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}
	s.operationMutex.RUnlock()

	params, err := s.buildParams(req)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	go s.runCompressAsync(req.InputPath, params)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.isRunning = false
	s.operationMutex.Unlock()

	s.broadcastWSMessage("operation_stopped", map[string]interface{}{
		"message": "Operation stopped by user",
	})

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Operation stopped",
	})
}

// buildParams merges a request with the server configuration.
func (s *Server) buildParams(req CompressRequest) (compressor.CompressionParams, error) {
	var params compressor.CompressionParams

	formatTag := req.Format
	if formatTag == "" {
		formatTag = s.cfg.Format
	}
	format, err := search.ParseFormat(formatTag)
	if err != nil {
		return params, err
	}

	bg, err := codec.ParseHexColor(s.cfg.Background)
	if err != nil {
		return params, err
	}

	bounds := s.cfg.Bounds()
	if req.MinQuality > 0 {
		bounds.Min = req.MinQuality
	}
	if req.MaxQuality > 0 {
		bounds.Max = req.MaxQuality
	}

	outDir := req.OutputDirectory
	if outDir == "" {
		outDir = s.cfg.OutputDirectory
	}

	params = compressor.CompressionParams{
		InputPaths:  []string{req.InputPath},
		OutputDir:   outDir,
		Format:      format,
		TargetBytes: int64(req.TargetKB) * 1024,
		Bounds:      bounds,
		Background:  bg,
		Force:       req.Force || s.cfg.Force,
		SkipMarked:  false, // explicit web request always re-compresses
		Workers:     s.cfg.Performance.WorkerThreads,
		Observer: func(inputPath string, quality int, size int64, feasible bool) {
			s.broadcastWSMessage("probe", map[string]interface{}{
				"file":     inputPath,
				"quality":  quality,
				"size":     size,
				"feasible": feasible,
			})
		},
	}
	return params, nil
}

func (s *Server) runCompressAsync(inputPath string, params compressor.CompressionParams) {
	ctx, cancel := context.WithCancel(context.Background())

	s.operationMutex.Lock()
	s.isRunning = true
	s.currentStats = statistics.NewStatistics()
	s.cancelRun = cancel
	stats := s.currentStats
	s.operationMutex.Unlock()

	s.broadcastWSMessage("compress_started", map[string]interface{}{
		"input":     inputPath,
		"format":    params.Format.String(),
		"target_kb": params.TargetBytes / 1024,
	})

	comp := compressor.NewDefaultCompressor(s.log, stats)
	results, err := comp.Compress(ctx, params)

	s.operationMutex.Lock()
	s.isRunning = false
	s.cancelRun = nil
	s.operationMutex.Unlock()
	cancel()

	if err != nil {
		s.broadcastWSMessage("compress_error", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	payload := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		entry := map[string]interface{}{
			"input":           r.InputPath,
			"output":          r.OutputPath,
			"action":          r.Action,
			"reason":          r.Reason.String(),
			"quality":         r.Quality,
			"probes":          r.Probes,
			"original_size":   r.OriginalSize,
			"compressed_size": r.CompressedSize,
			"saved_percent":   r.PercentageSaved,
			"message":         r.Message,
			"success":         r.Success,
		}
		if r.Error != nil {
			entry["error"] = r.Error.Error()
		}
		payload = append(payload, entry)
	}

	s.broadcastWSMessage("compress_completed", map[string]interface{}{
		"results":    payload,
		"statistics": stats.GetSummary(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	// Remove client on disconnect
	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()

	for conn := range s.wsClients {
		err := conn.WriteMessage(websocket.TextMessage, msgBytes)
		if err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			// Remove failed connection
			go func(c *websocket.Conn) {
				s.wsMutex.Lock()
				delete(s.wsClients, c)
				s.wsMutex.Unlock()
				c.Close()
			}(conn)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
