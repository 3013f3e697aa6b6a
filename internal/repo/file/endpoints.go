package file

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/repo"
)

var _ repo.EndpointSource = (*EndpointFile)(nil)

type endpointsDocument struct {
	Endpoints []repo.EndpointRow `yaml:"endpoints"`
}

// EndpointFile reads endpoint configuration from a YAML document of the form
//
//	endpoints:
//	  - api_id: users-api
//	    url: https://example.com/health
//	    expected_status_codes: [200, 204]
//
// The file is re-read on every call so edits apply on the next run.
type EndpointFile struct {
	path string
}

func NewEndpointFile(path string) *EndpointFile {
	return &EndpointFile{path: path}
}

func (f *EndpointFile) ListEndpoints(ctx context.Context) ([]domain.EndpointSpec, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read endpoints file: %w", err)
	}
	var doc endpointsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse endpoints file %s: %w", f.path, err)
	}
	out := make([]domain.EndpointSpec, 0, len(doc.Endpoints))
	for _, row := range doc.Endpoints {
		out = append(out, row.Spec())
	}
	return out, nil
}
