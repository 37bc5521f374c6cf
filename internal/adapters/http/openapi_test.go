package http_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	handler "github.com/samirrijal/roadwatch/internal/adapters/http"
)

// findOpenAPISpec locates the openapi.yaml file by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	// Start from the current working directory or test file location
	dir, _ := os.Getwd()

	// Look for api/openapi.yaml by going up directories
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

// TestOpenAPISpec validates the OpenAPI specification is valid.
func TestOpenAPISpec(t *testing.T) {
	// Load the spec file
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	// Parse YAML spec
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	// Validate the spec
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	// Check that key paths exist
	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/reports",
		"/v1/reports/nearby",
		"/v1/reports/stats",
		"/v1/reports/{id}",
		"/v1/routes/damages",
		"/v1/label",
		"/v1/detections",
		"/v1/cameras",
		"/v1/cameras/{id}",
		"/v1/cameras/{id}/stream",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	// Verify key schemas exist
	expectedSchemas := []string{
		"GeoPoint",
		"Report",
		"ReportMatch",
		"RouteDamages",
		"DetectionSubmission",
		"DetectionOutcome",
		"Camera",
		"Statistics",
		"APIError",
		"Pagination",
	}

	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPIRouteDamages checks the documented route query matches the handler.
func TestOpenAPIRouteDamages(t *testing.T) {
	data, err := os.ReadFile(findOpenAPISpec(t))
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}
	spec, err := (&openapi3.Loader{IsExternalRefsAllowed: false}).LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	item := spec.Paths.Find("/v1/routes/damages")
	if item == nil || item.Post == nil || item.Get == nil {
		t.Fatal("expected POST and GET on /v1/routes/damages")
	}
	if !item.Get.Deprecated {
		t.Error("expected the GET form to be deprecated")
	}
	if item.Post.Deprecated {
		t.Error("expected the POST form to be current")
	}

	damages := spec.Components.Schemas["RouteDamages"]
	for _, field := range []string{"damages", "route_length", "damage_count"} {
		if damages.Value.Properties[field] == nil {
			t.Errorf("RouteDamages missing %s", field)
		}
	}
}

// TestOpenAPIInfo verifies spec metadata.
func TestOpenAPIInfo(t *testing.T) {
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	if spec.Info.Title != "Roadwatch API" {
		t.Errorf("expected title 'Roadwatch API', got %q", spec.Info.Title)
	}

	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}

	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", spec.Info.Title, spec.Info.Version, spec.Servers[0].URL)
}

// TestDocsServesSpec checks /docs/openapi.yaml serves the document above.
func TestDocsServesSpec(t *testing.T) {
	specPath := findOpenAPISpec(t)
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.SpecPath = specPath }))

	resp, body := doGet(t, app, "/docs/openapi.yaml")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("expected application/yaml, got %q", ct)
	}
	if !strings.Contains(string(body), "title: Roadwatch API") {
		t.Error("expected the Roadwatch document")
	}

	resp, _ = doGet(t, app, "/docs")
	if resp.StatusCode != 200 {
		t.Errorf("expected Swagger UI page, got %d", resp.StatusCode)
	}
}
