package schema

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/feral-file/card-registry/internal/domain"
)

//go:embed methods/*.json
var methodSchemas embed.FS

var validators = map[domain.Method]*gojsonschema.Schema{}

func init() {
	for _, method := range domain.Methods {
		data, err := methodSchemas.ReadFile("methods/" + string(method) + ".json")
		if err != nil {
			panic(fmt.Sprintf("missing schema for %s: %v", method, err))
		}

		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			panic(fmt.Sprintf("failed to load schema for %s: %v", method, err))
		}
		validators[method] = s
	}
}

// ValidateArgs checks the JSON arguments of a call against the schema of its method.
// Empty or null args are validated as an empty object.
func ValidateArgs(method domain.Method, args []byte) error {
	if !method.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownMethod, method)
	}
	s, ok := validators[method]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownMethod, method)
	}

	if len(strings.TrimSpace(string(args))) == 0 || strings.TrimSpace(string(args)) == "null" {
		args = []byte("{}")
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: malformed %s args: %v", domain.ErrInvalidArgument, method, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, strings.Join(msgs, "; "))
	}

	return nil
}
