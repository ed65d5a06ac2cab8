package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSources - публичная bulk-выгрузка ABR на data.gov.au, две части.
var DefaultSources = []string{
	"https://data.gov.au/data/dataset/5bd7fcab-e315-42cb-8daf-50b7efc2027e/resource/0ae4d427-6fa8-4d40-8e76-c6909b5a071b/download/public_split_1_10.zip",
	"https://data.gov.au/data/dataset/5bd7fcab-e315-42cb-8daf-50b7efc2027e/resource/635fcb95-7864-4509-9fa7-a62a6e32b62d/download/public_split_11_20.zip",
}

type Manifest struct {
	Sources []string `yaml:"sources" validate:"required,min=1,dive,url"`
}

// LoadSources читает список архивов из YAML. Пустой путь - DefaultSources.
func LoadSources(path string) ([]string, error) {
	if path == "" {
		return DefaultSources, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
	}

	return m.Sources, nil
}
