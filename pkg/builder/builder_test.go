package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/opsgraph/opsgraph/pkg/ai"
	"github.com/opsgraph/opsgraph/pkg/common"
	"github.com/opsgraph/opsgraph/pkg/store"
	"github.com/opsgraph/opsgraph/pkg/textproc"
)

// fakeAIClient fails its first `failures` structured calls and then
// returns the canned response.
type fakeAIClient struct {
	calls      int
	failures   int
	resets     int
	lastPrompt string
	response   extractionResponse
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (f *fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.calls++
	f.lastPrompt = prompt
	if f.calls <= f.failures {
		return errors.New("model overloaded")
	}
	*out.(*extractionResponse) = f.response
	return nil
}

func (f *fakeAIClient) ResetMetrics() { f.resets++ }

func (f *fakeAIClient) GetMetrics() ai.ModelMetrics {
	return ai.ModelMetrics{TotalTokens: 42}
}

type fakeStore struct {
	systems   []*common.SystemEntity
	events    []*common.EventEntity
	documents []*common.GraphDocument
	failMerge bool
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeStore) LoadEntities(ctx context.Context, systems []*common.SystemEntity, events []*common.EventEntity) (store.LoadCounts, error) {
	f.systems = append(f.systems, systems...)
	f.events = append(f.events, events...)
	return store.LoadCounts{Systems: len(systems), Events: len(events)}, nil
}

func (f *fakeStore) MergeGraphDocument(ctx context.Context, doc *common.GraphDocument) (store.LoadCounts, error) {
	if f.failMerge {
		return store.LoadCounts{}, errors.New("store unavailable")
	}
	f.documents = append(f.documents, doc)
	return store.LoadCounts{Nodes: len(doc.Nodes), Relationships: len(doc.Relationships)}, nil
}

func (f *fakeStore) Clear(ctx context.Context) error { return nil }

func (f *fakeStore) Close(ctx context.Context) error { return nil }

type fakeExtractor struct {
	doc *common.GraphDocument
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, systemID string, analysisContext string) (*common.GraphDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func processedFixture() *textproc.Result {
	return &textproc.Result{
		SystemID: "web-prod-01",
		Files: []*textproc.ProcessedFile{
			{
				Path:    "etc/redhat-release",
				Type:    textproc.FileTypeReleaseInfo,
				Content: "Red Hat Enterprise Linux release 9.2 (Plow)",
				Chunks:  []string{"Red Hat Enterprise Linux release 9.2 (Plow)"},
				Parsed: &textproc.ParsedContent{
					Release: &textproc.ReleaseInfo{
						Raw:      "Red Hat Enterprise Linux release 9.2 (Plow)",
						Version:  "9.2",
						Codename: "Plow",
					},
				},
			},
			{
				Path:    "etc/systemd/system/nginx.service",
				Type:    textproc.FileTypeSystemdService,
				Content: "ExecStart=/usr/sbin/nginx",
				Chunks:  []string{"ExecStart=/usr/sbin/nginx"},
				Parsed: &textproc.ParsedContent{
					Config: map[string]string{"ExecStart": "/usr/sbin/nginx"},
				},
			},
			{
				Path:    "var/log/messages.log",
				Type:    textproc.FileTypeLog,
				Content: "Jan 15 03:21:07 web-prod-01 sshd[1234]: Failed password for root",
				Chunks:  []string{"Jan 15 03:21:07 web-prod-01 sshd[1234]: Failed password for root"},
				Parsed: &textproc.ParsedContent{
					LogEntries: []textproc.LogEntry{
						{
							Pattern: "syslog",
							Fields:  map[string]string{"process": "sshd", "message": "Failed password for root"},
							Line:    "Jan 15 03:21:07 web-prod-01 sshd[1234]: Failed password for root",
						},
					},
				},
			},
			{
				Path: "etc/locked.conf",
				Type: textproc.FileTypeConfig,
				Err:  "Error: permission denied",
			},
		},
	}
}

func TestFilterGraphDocumentDropsOutOfVocabulary(t *testing.T) {
	doc := &common.GraphDocument{
		SystemID: "web-prod-01",
		Nodes: []common.Node{
			{Name: "web-prod-01", Label: "System"},
			{Name: "nginx", Label: "Service"},
			{Name: "weird", Label: "Spaceship"},
		},
		Relationships: []common.Relationship{
			{SourceName: "web-prod-01", SourceLabel: "System", TargetName: "nginx", TargetLabel: "Service", Type: "RUNS"},
			{SourceName: "web-prod-01", SourceLabel: "System", TargetName: "nginx", TargetLabel: "Service", Type: "TELEPORTS"},
			{SourceName: "web-prod-01", SourceLabel: "System", TargetName: "weird", TargetLabel: "Spaceship", Type: "RUNS"},
		},
	}

	filtered := FilterGraphDocument(doc)

	if len(filtered.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %+v", filtered.Nodes)
	}
	if len(filtered.Relationships) != 1 || filtered.Relationships[0].Type != "RUNS" {
		t.Fatalf("expected only the valid RUNS relationship, got %+v", filtered.Relationships)
	}
	// Original document untouched.
	if len(doc.Nodes) != 3 || len(doc.Relationships) != 3 {
		t.Fatal("input document must not be modified")
	}
}

func TestFilterGraphDocumentNeverLeaksLabels(t *testing.T) {
	// A pile of generated labels and types, some valid and some not.
	doc := &common.GraphDocument{SystemID: "sys"}
	for i := 0; i < 200; i++ {
		label := fmt.Sprintf("Label%d", i)
		if i%7 == 0 {
			label = NodeLabels[i%len(NodeLabels)]
		}
		doc.Nodes = append(doc.Nodes, common.Node{Name: fmt.Sprintf("n%d", i), Label: label})
	}
	for i := 0; i < 200; i++ {
		relType := fmt.Sprintf("DOES_%d", i)
		if i%5 == 0 {
			relType = RelationshipTypes[i%len(RelationshipTypes)]
		}
		doc.Relationships = append(doc.Relationships, common.Relationship{
			SourceName: fmt.Sprintf("n%d", i), SourceLabel: "System",
			TargetName: fmt.Sprintf("n%d", (i+1)%200), TargetLabel: "Service",
			Type: relType,
		})
	}

	filtered := FilterGraphDocument(doc)
	for _, node := range filtered.Nodes {
		if !AllowedNodeLabel(node.Label) {
			t.Fatalf("out-of-vocabulary label survived: %q", node.Label)
		}
	}
	for _, rel := range filtered.Relationships {
		if !AllowedRelationshipType(rel.Type) {
			t.Fatalf("out-of-vocabulary type survived: %q", rel.Type)
		}
	}
}

func TestBuildAnalysisContext(t *testing.T) {
	ctx := BuildAnalysisContext("web-prod-01", processedFixture())

	if !strings.HasPrefix(ctx, "SYSTEM ANALYSIS: web-prod-01") {
		t.Fatalf("missing header: %q", ctx[:50])
	}
	if !strings.Contains(ctx, "=== log_file: var/log/messages.log ===") {
		t.Fatal("missing file section marker")
	}
	if strings.Contains(ctx, "etc/locked.conf") {
		t.Fatal("failed files must not appear in the context")
	}
	if !strings.Contains(ctx, "KNOWLEDGE GRAPH INSTRUCTIONS") {
		t.Fatal("missing trailing instructions")
	}
}

func TestBuildAnalysisContextEmpty(t *testing.T) {
	processed := &textproc.Result{
		SystemID: "empty",
		Files: []*textproc.ProcessedFile{
			{Path: "a.conf", Type: textproc.FileTypeConfig, Err: "Error: nope"},
		},
	}
	if got := BuildAnalysisContext("empty", processed); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

func TestAIExtractorRetriesAndBuildsDocument(t *testing.T) {
	client := &fakeAIClient{
		failures: 1,
		response: extractionResponse{
			Nodes: []extractedNode{
				{Name: "web-prod-01", Label: "System", Description: "primary web host"},
				{Name: "", Label: "Service"},
			},
			Relationships: []extractedRelationship{
				{SourceName: "web-prod-01", SourceLabel: "System", TargetName: "nginx", TargetLabel: "Service", Type: "RUNS"},
			},
		},
	}
	e, err := NewAIExtractor(NewAIExtractorParams{Client: client, Model: "test-model", MaxRetries: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := e.Extract(context.Background(), "web-prod-01", "SYSTEM ANALYSIS: web-prod-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.calls != 2 {
		t.Fatalf("expected one retry after the first failure, got %d calls", client.calls)
	}
	if client.resets != 1 {
		t.Fatalf("metrics must be reset once per extraction, got %d", client.resets)
	}
	if !strings.Contains(client.lastPrompt, "ALLOWED NODE LABELS:") ||
		!strings.Contains(client.lastPrompt, "ALLOWED RELATIONSHIP TYPES:") {
		t.Fatal("prompt must carry the allowed vocabulary")
	}

	if doc.SystemID != "web-prod-01" {
		t.Fatalf("unexpected system id: %q", doc.SystemID)
	}
	if len(doc.Nodes) != 1 {
		t.Fatalf("nameless nodes must be skipped, got %+v", doc.Nodes)
	}
	node := doc.Nodes[0]
	if node.ID == "" || node.Label != "System" || node.Properties["description"] != "primary web host" {
		t.Fatalf("unexpected node: %+v", node)
	}
	if len(doc.Relationships) != 1 || doc.Relationships[0].Type != "RUNS" {
		t.Fatalf("unexpected relationships: %+v", doc.Relationships)
	}
}

func TestAIExtractorExhaustsRetries(t *testing.T) {
	client := &fakeAIClient{failures: 10}
	e, err := NewAIExtractor(NewAIExtractorParams{Client: client, MaxRetries: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.Extract(context.Background(), "web-prod-01", "context"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", client.calls)
	}
}

func TestNewAIExtractorRequiresClient(t *testing.T) {
	if _, err := NewAIExtractor(NewAIExtractorParams{}); err == nil {
		t.Fatal("expected error for missing client")
	}
}

func TestAIBuilderNoContent(t *testing.T) {
	st := &fakeStore{}
	b, err := NewAIBuilder(NewAIBuilderParams{
		Extractor: &fakeExtractor{},
		Store:     st,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := b.CreateKnowledgeGraph(context.Background(), "empty", &textproc.Result{SystemID: "empty"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("no content must report false")
	}
	if len(st.documents) != 0 {
		t.Fatal("nothing should be persisted")
	}
}

func TestAIBuilderExtractionFailureIsNotFatal(t *testing.T) {
	st := &fakeStore{}
	b, err := NewAIBuilder(NewAIBuilderParams{
		Extractor: &fakeExtractor{err: errors.New("model offline")},
		Store:     st,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := b.CreateKnowledgeGraph(context.Background(), "web-prod-01", processedFixture())
	if err != nil {
		t.Fatalf("extraction failure must not be an error: %v", err)
	}
	if ok {
		t.Fatal("extraction failure must report false")
	}
}

func TestAIBuilderPersistsFilteredDocument(t *testing.T) {
	st := &fakeStore{}
	b, err := NewAIBuilder(NewAIBuilderParams{
		Extractor: &fakeExtractor{doc: &common.GraphDocument{
			SystemID: "web-prod-01",
			Nodes: []common.Node{
				{Name: "web-prod-01", Label: "System"},
				{Name: "bogus", Label: "Spaceship"},
			},
		}},
		Store: st,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := b.CreateKnowledgeGraph(context.Background(), "web-prod-01", processedFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected success")
	}
	if len(st.documents) != 1 || len(st.documents[0].Nodes) != 1 {
		t.Fatalf("expected one filtered document, got %+v", st.documents)
	}
}

func TestAIBuilderPersistFailure(t *testing.T) {
	b, err := NewAIBuilder(NewAIBuilderParams{
		Extractor: &fakeExtractor{doc: &common.GraphDocument{
			SystemID: "web-prod-01",
			Nodes:    []common.Node{{Name: "web-prod-01", Label: "System"}},
		}},
		Store: &fakeStore{failMerge: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := b.CreateKnowledgeGraph(context.Background(), "web-prod-01", processedFixture()); err == nil {
		t.Fatal("persistence failure must be an error")
	}
}

func TestNewAIBuilderRequiresDependencies(t *testing.T) {
	if _, err := NewAIBuilder(NewAIBuilderParams{Store: &fakeStore{}}); err == nil {
		t.Fatal("expected error for missing extractor")
	}
	if _, err := NewAIBuilder(NewAIBuilderParams{Extractor: &fakeExtractor{}}); err == nil {
		t.Fatal("expected error for missing store")
	}
}

func TestRuleBuilderDerivesEntities(t *testing.T) {
	st := &fakeStore{}
	b, err := NewRuleBuilder(NewRuleBuilderParams{
		Store: st,
		Rules: []Rule{
			{Name: "ip_addresses", Pattern: `\d+\.\d+\.\d+\.\d+`, Label: "Device", Relationship: "CONNECTS_TO"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := b.CreateKnowledgeGraph(context.Background(), "web-prod-01", processedFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected success")
	}

	if len(st.systems) != 1 {
		t.Fatalf("expected 1 system, got %d", len(st.systems))
	}
	system := st.systems[0]
	if system.Environment != "production" {
		t.Fatalf("expected production environment, got %q", system.Environment)
	}
	if system.Version != "9.2" {
		t.Fatalf("expected version from release info, got %q", system.Version)
	}
	if len(system.Services) != 1 || system.Services[0] != "nginx" {
		t.Fatalf("expected nginx service, got %v", system.Services)
	}

	if len(st.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(st.events))
	}
	event := st.events[0]
	if event.Severity != "error" {
		t.Fatalf("failed-password line should be an error event, got %q", event.Severity)
	}
	if event.ID != "web-prod-01-evt-0000" {
		t.Fatalf("event ids must be deterministic, got %q", event.ID)
	}

	if len(st.documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(st.documents))
	}
	doc := st.documents[0]
	var hasSystem, hasService bool
	for _, node := range doc.Nodes {
		if node.Label == "System" && node.Name == "web-prod-01" {
			hasSystem = true
		}
		if node.Label == "Service" && node.Name == "nginx" {
			hasService = true
		}
	}
	if !hasSystem || !hasService {
		t.Fatalf("expected system and service nodes, got %+v", doc.Nodes)
	}
}

func TestRuleBuilderDeterministicAcrossRuns(t *testing.T) {
	run := func() *fakeStore {
		st := &fakeStore{}
		b, err := NewRuleBuilder(NewRuleBuilderParams{Store: st})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := b.CreateKnowledgeGraph(context.Background(), "web-prod-01", processedFixture()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return st
	}

	first, second := run(), run()
	if len(first.events) != len(second.events) {
		t.Fatal("event counts differ between runs")
	}
	for i := range first.events {
		if first.events[i].ID != second.events[i].ID {
			t.Fatalf("event ids differ between runs: %q vs %q", first.events[i].ID, second.events[i].ID)
		}
	}
}

func TestNewRuleBuilderRejectsBadRules(t *testing.T) {
	st := &fakeStore{}

	if _, err := NewRuleBuilder(NewRuleBuilderParams{Store: st, Rules: []Rule{
		{Name: "broken", Pattern: "(", Label: "Device", Relationship: "CONNECTS_TO"},
	}}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
	if _, err := NewRuleBuilder(NewRuleBuilderParams{Store: st, Rules: []Rule{
		{Name: "bad_label", Pattern: "x", Label: "Spaceship", Relationship: "CONNECTS_TO"},
	}}); err == nil {
		t.Fatal("expected error for out-of-vocabulary label")
	}
}

func TestBuilderCloseIdempotent(t *testing.T) {
	st := &fakeStore{}
	ab, err := NewAIBuilder(NewAIBuilderParams{Extractor: &fakeExtractor{}, Store: st})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rb, err := NewRuleBuilder(NewRuleBuilderParams{Store: st})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := ab.Close(ctx); err != nil {
			t.Fatalf("close must be idempotent: %v", err)
		}
		if err := rb.Close(ctx); err != nil {
			t.Fatalf("close must be idempotent: %v", err)
		}
	}
}
