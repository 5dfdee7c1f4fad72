package pipelines

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ascendops/inquiry-pipeline/pkg/envelope"
	"github.com/ascendops/inquiry-pipeline/pkg/searchindex"
)

// caseCodePattern extracts the RTS case code from a Test-Engine header
// value, e.g. "Record-EXETER-CM" -> "EXETER-CM".
var caseCodePattern = regexp.MustCompile(`^Record-([A-Z_]+(-[A-Z_]+)?)$`)

// modelServiceNames are the service names whose testcase key must be
// disambiguated by the model they invoked, since a single testcase can
// call the same model-hosting service more than once.
var modelServiceNames = map[string]bool{
	"SAGEMAKER":   true,
	"SAGEMAKER-2": true,
}

// AuditLogHandler implements the audit-log / regression-recording
// pipeline: upserts testcase snapshots into the search index, one document
// per go_transaction_id, built up from both the versioned (full service
// trace) and plain (inquiry request) envelope forms.
type AuditLogHandler struct {
	index  searchindex.Provider
	logger hclog.Logger
}

// NewAuditLogHandler builds the audit-log pipeline handler.
func NewAuditLogHandler(index searchindex.Provider, logger hclog.Logger) *AuditLogHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &AuditLogHandler{index: index, logger: logger.Named("auditlog-handler")}
}

func (h *AuditLogHandler) Handle(ctx context.Context, records []*kgo.Record) error {
	versioned, plain, errs := envelope.Split(records)
	for _, e := range errs {
		h.logger.Warn("skipping record: envelope decode failed", "error", e)
	}

	for _, v := range versioned {
		if err := h.handleVersioned(ctx, v); err != nil {
			h.logger.Error("testcase snapshot upsert failed", "error", err)
		}
	}
	for _, p := range plain {
		if err := h.handlePlain(ctx, p); err != nil {
			h.logger.Error("testcase request upsert failed", "error", err)
		}
	}
	return nil
}

// handleVersioned groups a testcase's services by name (disambiguating
// model-call services by model_uid) and upserts {services, ao_response}
// under testcase_id = go_transaction_id. Records missing is_testcase, or
// with is_testcase false, are ignored without error.
func (h *AuditLogHandler) handleVersioned(ctx context.Context, v envelope.Versioned) error {
	isTestcase, ok := v.Decoded["is_testcase"].(bool)
	if !ok || !isTestcase {
		return nil
	}

	goTransactionID, _ := v.Decoded["go_transaction_id"].(string)
	if goTransactionID == "" {
		goTransactionID = v.TransactionIDHint()
	}
	if goTransactionID == "" {
		return fmt.Errorf("no transaction id on versioned testcase record")
	}

	services, _ := v.Decoded["services"].([]interface{})
	serviceData := make(map[string]interface{}, len(services))
	for _, raw := range services {
		service, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := service["service_name"].(string)

		key := name
		if modelServiceNames[name] {
			modelUID := modelUIDOf(service)
			key = fmt.Sprintf("%s_%s", name, modelUID)
		}
		// Two entries landing on the same key would silently overwrite one
		// another; a snapshot like that can't be replayed faithfully.
		if _, exists := serviceData[key]; exists {
			return fmt.Errorf("duplicate service entry %q in testcase %s", key, goTransactionID)
		}
		serviceData[key] = service
	}

	servicesJSON, err := json.Marshal(serviceData)
	if err != nil {
		return fmt.Errorf("failed to serialize services: %w", err)
	}
	responseJSON, err := json.Marshal(v.Decoded["response_payload"])
	if err != nil {
		return fmt.Errorf("failed to serialize response payload: %w", err)
	}

	return h.index.Upsert(ctx, searchindex.Document{
		ID: goTransactionID,
		Fields: map[string]interface{}{
			"testcase_id": goTransactionID,
			"services":    string(servicesJSON),
			"ao_response": string(responseJSON),
		},
	})
}

func modelUIDOf(service map[string]interface{}) string {
	content, _ := service["content"].(map[string]interface{})
	request, _ := content["request"].(map[string]interface{})
	uid, _ := request["model_uid"].(string)
	return uid
}

// handlePlain upserts {testcase_id, ao_request, solution_id, case_code,
// trade_date} when the plain envelope is an INQUIRY_REQUEST carrying a
// recognized Test-Engine header. Everything else is ignored without error.
func (h *AuditLogHandler) handlePlain(ctx context.Context, p envelope.Plain) error {
	if p.ServiceName != "INQUIRY_REQUEST" {
		return nil
	}

	content, ok := p.Content.(map[string]interface{})
	if !ok {
		return nil
	}

	requestHeaders, ok := content["request_headers"].(map[string]interface{})
	if !ok {
		return nil
	}

	headerValue, ok := lookupCaseInsensitive(requestHeaders, "Test-Engine", "test-engine")
	if !ok {
		return nil
	}

	match := caseCodePattern.FindStringSubmatch(headerValue)
	if match == nil {
		return nil
	}
	caseCode := match[1]

	if p.GoTransactionID == "" {
		return fmt.Errorf("go_transaction_id missing from plain testcase record")
	}

	requestPayload, _ := content["request_payload"].(map[string]interface{})
	solutionID, _ := requestPayload["solution_id"].(string)

	requestJSON, err := json.Marshal(requestPayload)
	if err != nil {
		return fmt.Errorf("failed to serialize request payload: %w", err)
	}

	return h.index.Upsert(ctx, searchindex.Document{
		ID: p.GoTransactionID,
		Fields: map[string]interface{}{
			"testcase_id": p.GoTransactionID,
			"ao_request":  string(requestJSON),
			"solution_id": solutionID,
			"case_code":   caseCode,
			"trade_date":  time.Now().UTC().Format("2006-01-02T15:04:05"),
		},
	})
}

func lookupCaseInsensitive(m map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
