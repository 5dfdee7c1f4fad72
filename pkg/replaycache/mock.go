package replaycache

import (
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-hclog"
)

// Route describes one mocked external service endpoint: the service key
// its recorded snapshot is stored under (doubled with a "-2" suffix for
// the secondary applicant), and the validator used to compare the
// incoming request against the recorded one.
type Route struct {
	Path            string
	PrimaryKey      string // e.g. "CCR"
	SecondaryKey    string // e.g. "CCR-2"
	Validate        func(current, baseline map[string]interface{}) bool
	RequestFailedOn string // response body message on unexpected handler failure
}

// Server exposes the bounded set of replay-mock HTTP endpoints, backed by
// a single Cache.
type Server struct {
	cache  *Cache
	logger hclog.Logger
}

// NewServer builds the replay-mock HTTP server.
func NewServer(cache *Cache, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{cache: cache, logger: logger.Named("replay-mock")}
}

// Handler returns the http.Handler for route: look up the recorded
// snapshot for the request's testcase_id header, pick the
// primary/secondary service entry by the applicant_type header, validate
// the posted request against the recorded one, and replay the recorded
// response and status code on a match.
func (s *Server) Handler(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testcaseID := r.Header.Get("testcase_id")

		var current map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&current); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"rts_status": "Invalid request body"})
			return
		}

		serviceKey := route.PrimaryKey
		if r.Header.Get("applicant_type") != "primary" {
			serviceKey = route.SecondaryKey
		}

		services, err := s.cache.GetServices(r.Context(), testcaseID)
		if err != nil {
			s.logger.Error("mock replay failed: testcase lookup", "testcase_id", testcaseID, "error", err)
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"rts_status": route.RequestFailedOn})
			return
		}

		record, ok := services[serviceKey].(map[string]interface{})
		if !ok {
			s.logger.Error("mock replay failed: no recorded service entry", "testcase_id", testcaseID, "service_key", serviceKey)
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"rts_status": route.RequestFailedOn})
			return
		}

		content, _ := record["content"].(map[string]interface{})
		request, _ := content["request"].(map[string]interface{})
		baseline, _ := request["payload"].(map[string]interface{})

		if !route.Validate(current, baseline) {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"rts_status": "Request Validation Failed"})
			return
		}

		response, _ := content["response"].(map[string]interface{})
		result, _ := record["result"].(map[string]interface{})
		status := http.StatusOK
		if rc, ok := result["rc"].(float64); ok {
			status = int(rc)
		}

		s.writeJSON(w, status, response)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// DefaultRoutes is the set of replay-mock endpoints wired by default.
// Endpoints whose underlying service validates by exact equality (proctor,
// pinning, clarity, crosscore, criteria, decision) share the exact-match
// validator; CCR compares inquiry strings block by block and SAGEMAKER
// tolerates the ignored-keys set.
func DefaultRoutes() []Route {
	exactMatch := func(current, baseline map[string]interface{}) bool {
		return MatchRecursively(current, baseline, nil)
	}
	sagemakerMatch := func(current, baseline map[string]interface{}) bool {
		return MatchRecursively(current, baseline, DefaultIgnoredKeys)
	}
	ccrMatch := func(current, baseline map[string]interface{}) bool {
		return ccrBaseValidate(current, baseline)
	}

	return []Route{
		{Path: "/ccr_base", PrimaryKey: "CCR", SecondaryKey: "CCR-2", Validate: ccrMatch, RequestFailedOn: "Mock CCR Request Failed"},
		{Path: "/proctor_base", PrimaryKey: "PROCTOR", SecondaryKey: "PROCTOR-2", Validate: exactMatch, RequestFailedOn: "Mock PROCTOR Request Failed"},
		{Path: "/pinning_base", PrimaryKey: "PINNING", SecondaryKey: "PINNING-2", Validate: exactMatch, RequestFailedOn: "Mock PINNING Request Failed"},
		{Path: "/clarity_base", PrimaryKey: "CLARITY", SecondaryKey: "CLARITY-2", Validate: exactMatch, RequestFailedOn: "Mock CLARITY Request Failed"},
		{Path: "/crosscore_base", PrimaryKey: "CROSSCORE", SecondaryKey: "CROSSCORE-2", Validate: exactMatch, RequestFailedOn: "Mock CROSSCORE Request Failed"},
		{Path: "/criteria_base", PrimaryKey: "CRITERIA", SecondaryKey: "CRITERIA-2", Validate: exactMatch, RequestFailedOn: "Mock CRITERIA Request Failed"},
		{Path: "/decision_base", PrimaryKey: "DECISION", SecondaryKey: "DECISION-2", Validate: exactMatch, RequestFailedOn: "Mock DECISION Request Failed"},
		{Path: "/sagemaker_base", PrimaryKey: "SAGEMAKER", SecondaryKey: "SAGEMAKER-2", Validate: sagemakerMatch, RequestFailedOn: "Mock SAGEMAKER Request Failed"},
	}
}

// ccrBaseValidate requires every top-level key to match exactly except
// "inquiry", whose semicolon-delimited blocks are compared with
// InquiryStringsMatch.
func ccrBaseValidate(current, baseline map[string]interface{}) bool {
	for key, currentValue := range current {
		baselineValue, ok := baseline[key]
		if !ok {
			return false
		}
		if key != "inquiry" {
			if !MatchRecursively(currentValue, baselineValue, nil) {
				return false
			}
			continue
		}

		currentInquiry, ok1 := currentValue.(string)
		baselineInquiry, ok2 := baselineValue.(string)
		if !ok1 || !ok2 || !InquiryStringsMatch(currentInquiry, baselineInquiry) {
			return false
		}
	}
	return true
}
