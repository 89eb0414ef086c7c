package plan

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type UnmarshalError struct {
	error
	Source string
}

// Load reads a fleet plan file, evaluates its template, and parses and
// validates the result. On unmarshal or validation failure the error carries
// the evaluated source for display.
func Load(file string) (*Plan, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	source, err := evaluateTemplate(string(buf))
	if err != nil {
		return nil, fmt.Errorf("evaluate template: %w", err)
	}

	var plan Plan
	if err = yaml.Unmarshal([]byte(source), &plan); err != nil {
		return nil, UnmarshalError{fmt.Errorf("unmarshal: %w", err), source}
	}
	if err = plan.Validate(); err != nil {
		return nil, UnmarshalError{fmt.Errorf("validate: %w", err), source}
	}

	return &plan, nil
}

type TemplateData struct {
	Env map[string]string
}

func evaluateTemplate(source string) (string, error) {
	tmpl, err := template.New("plan").Funcs(template.FuncMap{
		"base64": func(s string) string {
			return base64.StdEncoding.EncodeToString([]byte(s))
		},
		"env": func(key string) string {
			return os.Getenv(key)
		},
		"json": func(v any) (string, error) {
			buf, err := json.Marshal(v)
			return string(buf), err
		},
		"split": func(sep string, s string) []string {
			return strings.Split(s, sep)
		},
	}).Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	data := TemplateData{
		Env: lo.SliceToMap(os.Environ(), func(env string) (key, val string) { key, val, _ = strings.Cut(env, "="); return }),
	}

	var output strings.Builder
	if err := tmpl.Execute(&output, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return output.String(), nil
}
