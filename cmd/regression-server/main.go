// Command regression-server hosts the regression harness surface: the
// replay-mock HTTP endpoints that serve previously recorded
// external-service responses, and a job-submission API whose jobs collect
// the ids of recorded testcases matching a solution id / case code. A job
// does not replay the testcases it collects.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/ascendops/inquiry-pipeline/internal/config"
	"github.com/ascendops/inquiry-pipeline/pkg/jobtracker"
	"github.com/ascendops/inquiry-pipeline/pkg/replaycache"
	"github.com/ascendops/inquiry-pipeline/pkg/searchindex"
)

func main() {
	configPath := flag.String("config", "config.hcl", "path to configuration file")
	addr := flag.String("addr", ":9000", "address to listen on")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "regression-server",
		Level: config.LogLevelFromEnv(),
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.SearchIndex == nil || cfg.AuditLog == nil {
		logger.Error("search_index and audit_log configuration blocks are required")
		os.Exit(1)
	}

	opts := searchindex.Options{Backend: cfg.SearchIndex.Provider}
	if cfg.SearchIndex.Bleve != nil {
		opts.Bleve = searchindex.BleveConfig{IndexPath: cfg.SearchIndex.Bleve.IndexPath}
	}
	if cfg.SearchIndex.Meilisearch != nil {
		opts.Meilisearch = searchindex.MeilisearchConfig{
			Host:      cfg.SearchIndex.Meilisearch.Host,
			APIKey:    cfg.SearchIndex.Meilisearch.APIKey,
			IndexName: cfg.SearchIndex.Meilisearch.IndexName,
		}
	}
	index, err := searchindex.New(opts)
	if err != nil {
		logger.Error("failed to build search index provider", "error", err)
		os.Exit(1)
	}
	defer index.Close()

	cache, err := replaycache.NewCache(cfg.AuditLog.ReplayCacheSize, index, logger)
	if err != nil {
		logger.Error("failed to build replay cache", "error", err)
		os.Exit(1)
	}
	replayServer := replaycache.NewServer(cache, logger)

	tracker := jobtracker.New(jobQueueSize())
	api := &regressionAPI{index: index, tracker: tracker, logger: logger.Named("regression-api")}

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", healthCheck)
	mux.HandleFunc("/", healthCheck)
	mux.HandleFunc("/api/v3/regression-test/run-testcases", api.runTestcases)
	mux.HandleFunc("/api/v3/regression-test/get-results/", api.getResults)
	for _, route := range replaycache.DefaultRoutes() {
		mux.Handle(route.Path, replayServer.Handler(route))
	}

	server := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Info("regression-server listening", "addr", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("regression-server failed", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()
	logger.Info("regression-server stopped gracefully")
}

// jobQueueSize bounds how many jobs are tracked at once.
func jobQueueSize() int {
	return 50
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("health check success. %q", r.URL.Path),
	})
}

// regressionAPI implements the job-submission half of the harness: start a
// job that collects the ids of testcases matching a solution id / case
// code, track its status, and report the collected ids once it is done.
type regressionAPI struct {
	index   searchindex.Provider
	tracker *jobtracker.Tracker
	logger  hclog.Logger
}

type runTestcasesRequest struct {
	SolutionID string `json:"solution_id"`
	CaseCode   string `json:"case_code"`
}

// runTestcases starts a job asynchronously and returns its id immediately.
func (a *regressionAPI) runTestcases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runTestcasesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	if !a.tracker.Start(jobID) {
		http.Error(w, "job queue overloaded, try again later", http.StatusServiceUnavailable)
		return
	}

	go a.runJob(jobID, req)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"job_id": jobID, "status": jobtracker.StatusStarted})
}

// runJob scrolls the index for testcases matching the request's
// solution_id and case_code, recording the ids of the matching testcases
// (under "matched_testcases") as the job's result set.
func (a *regressionAPI) runJob(jobID string, req runTestcasesRequest) {
	a.tracker.SetStatus(jobID, jobtracker.StatusFetchedTestcases)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var matched []string
	err := a.index.Scroll(ctx, func(id string, fields map[string]interface{}) bool {
		solutionID, _ := fields["solution_id"].(string)
		caseCode, _ := fields["case_code"].(string)
		if (req.SolutionID == "" || solutionID == req.SolutionID) &&
			(req.CaseCode == "" || caseCode == req.CaseCode) {
			matched = append(matched, id)
		}
		return true
	})
	if err != nil {
		a.logger.Error("regression job failed to scroll testcases", "job_id", jobID, "error", err)
		a.tracker.SetStatus(jobID, "failed to get testcases")
		return
	}

	a.tracker.Complete(jobID, map[string]interface{}{"matched_testcases": matched})
}

func (a *regressionAPI) getResults(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Path[len("/api/v3/regression-test/get-results/"):]
	entry, ok := a.tracker.Get(jobID)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"job_id":  jobID,
		"status":  entry.Status,
		"results": entry.Results,
	})
}
