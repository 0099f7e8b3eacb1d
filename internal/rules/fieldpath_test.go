// internal/rules/fieldpath_test.go
package rules

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/condfields/internal/types"
)

func submitted() map[string]any {
	return map[string]any{
		"body": []any{map[string]any{"value": "text", "format": "basic"}},
		"tags": map[string]any{"target_id": "7"},
	}
}

func TestLookupValue(t *testing.T) {
	tests := []struct {
		name   string
		path   []string
		want   any
		wantOK bool
	}{
		{name: "list row", path: []string{"body", "0", "value"}, want: "text", wantOK: true},
		{name: "map key", path: []string{"tags", "target_id"}, want: "7", wantOK: true},
		{name: "index out of range", path: []string{"body", "1"}, wantOK: false},
		{name: "non-numeric index", path: []string{"body", "x"}, wantOK: false},
		{name: "through scalar", path: []string{"tags", "target_id", "deeper"}, wantOK: false},
		{name: "missing key", path: []string{"summary"}, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LookupValue(submitted(), tt.path)
			if ok != tt.wantOK {
				t.Fatalf("LookupValue() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !cmp.Equal(got, tt.want) {
				t.Errorf("LookupValue() = %#v, want %#v", got, tt.want)
			}
		})
	}

	root := submitted()
	if got, ok := LookupValue(root, nil); !ok || !cmp.Equal(got, root) {
		t.Errorf("LookupValue(empty path) did not return the root")
	}
}

func TestSetValue(t *testing.T) {
	values := submitted()
	if err := SetValue(values, []string{"body", "0", "value"}, "changed"); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if got, _ := LookupValue(values, []string{"body", "0", "value"}); got != "changed" {
		t.Errorf("value after SetValue = %#v, want changed", got)
	}
	if err := SetValue(values, []string{"summary", "0"}, "x"); !errors.Is(err, types.ErrPathNotFound) {
		t.Errorf("SetValue() missing parent error = %v, want ErrPathNotFound", err)
	}
	if err := SetValue(values, nil, "x"); !errors.Is(err, types.ErrPathNotFound) {
		t.Errorf("SetValue() empty path error = %v, want ErrPathNotFound", err)
	}
}

func TestDeleteValue(t *testing.T) {
	values := submitted()
	if !DeleteValue(values, []string{"tags"}) {
		t.Fatalf("DeleteValue(tags) = false, want true")
	}
	if _, ok := values["tags"]; ok {
		t.Errorf("tags still present after DeleteValue")
	}
	if !DeleteValue(values, []string{"body", "0"}) {
		t.Fatalf("DeleteValue(body/0) = false, want true")
	}
	if diff := cmp.Diff([]any{nil}, values["body"]); diff != "" {
		t.Errorf("list entry not cleared in place (-want +got):\n%s", diff)
	}
	if DeleteValue(values, []string{"summary"}) {
		t.Errorf("DeleteValue(missing) = true, want false")
	}
}

// Property-based test: set then lookup returns the stored value
func TestSetValue_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("LookupValue sees what SetValue stored", prop.ForAll(
		func(key, value string) bool {
			values := submitted()
			path := []string{"body", "0", key}
			if err := SetValue(values, path, value); err != nil {
				return false
			}
			got, ok := LookupValue(values, path)
			return ok && got == value
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
