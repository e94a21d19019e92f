package generator

import (
	"fmt"
	"strings"

	"github.com/conmonhq/conmon/engine/catalog"
	"github.com/conmonhq/conmon/engine/compare"
	"github.com/conmonhq/conmon/engine/schema"
)

// promptInput carries everything the template needs for one attempt.
type promptInput struct {
	Control        *catalog.Control
	Provider       string
	Model          *schema.Model
	Severity       string
	Category       string
	SamplePaths    []string
	FieldPathDepth int
	Feedback       string
}

// buildPrompt renders the stable generation template: the resource
// schema fragment, the operator enums, sample field paths, control
// text, and a strict YAML example the model must fill in.
func buildPrompt(in *promptInput) string {
	var b strings.Builder
	b.WriteString("You are a compliance engineer generating one automated check.\n\n")
	fmt.Fprintf(&b, "## Control\n")
	fmt.Fprintf(&b, "Name: %s\n", in.Control.ControlName)
	fmt.Fprintf(&b, "Title: %s\n", in.Control.ControlLongName)
	fmt.Fprintf(&b, "Family: %s\n", in.Control.Family())
	fmt.Fprintf(&b, "Requirement:\n%s\n\n", strings.TrimSpace(in.Control.ControlText))
	fmt.Fprintf(&b, "## Target resource type\n")
	fmt.Fprintf(&b, "Fully-qualified name: %s\n\n", in.Model.FullName())
	b.WriteString("Schema:\n")
	writeSchemaFragment(&b, in.Model.Record, 1, 5)
	b.WriteString("\n## Field paths\n")
	b.WriteString("A field path selects one value from a resource. Dotted access,\n")
	b.WriteString("`[*]` expands arrays, and len/any/all/count/sum/max/min wrap a path.\n")
	b.WriteString("Example paths available on this type:\n")
	for _, p := range in.SamplePaths {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	b.WriteString("\n## Operators\n")
	ops := make([]string, 0, len(compare.Operators()))
	for _, op := range compare.Operators() {
		ops = append(ops, string(op))
	}
	fmt.Fprintf(&b, "Allowed operation names: %s\n", strings.Join(ops, ", "))
	b.WriteString("Custom logic is a restricted boolean expression over `fetched_value`\n")
	b.WriteString("and `config_value` (CEL syntax; write it as `result = <expression>`).\n")
	b.WriteString("Only those two names are in scope; anything else fails.\n\n")
	fmt.Fprintf(&b, "Suggested severity: %s, category: %s\n\n", in.Severity, in.Category)
	if in.Feedback != "" {
		b.WriteString("## Previous attempt feedback\n")
		b.WriteString(in.Feedback)
		b.WriteString("\n")
	}
	b.WriteString("## Required output\n")
	b.WriteString("Respond with YAML only, exactly one check, in this shape:\n\n")
	b.WriteString(responseExample(in))
	return b.String()
}

func responseExample(in *promptInput) string {
	return fmt.Sprintf(`checks:
  - name: descriptive_snake_case_name
    description: One sentence on what the check verifies.
    category: %s
    output_statements:
      success: Statement shown when every resource passes.
      failure: Statement shown when every resource fails.
      partial: Statement shown on mixed results.
    fix_details:
      description: How to remediate.
      instructions:
        - First remediation step.
        - Second remediation step.
      estimated_time: 30 minutes
      automation_available: false
    metadata:
      resource_type: %s
      field_path: choose.a.path.from.the.list
      operation:
        name: custom
        logic: result = fetched_value == config_value
      expected_value: true
      tags: [%s]
      severity: %s
      category: %s
`, in.Category, in.Model.FullName(), in.Control.Family(), in.Severity, in.Category)
}

// writeSchemaFragment renders the record tree as indented text.
func writeSchemaFragment(b *strings.Builder, st *schema.StructType, indent, maxDepth int) {
	if st == nil || indent > maxDepth {
		return
	}
	pad := strings.Repeat("  ", indent)
	for i := range st.Fields {
		f := &st.Fields[i]
		fmt.Fprintf(b, "%s%s: %s\n", pad, f.Name, typeLabel(&f.Type))
		if nested := nestedStruct(&f.Type); nested != nil {
			writeSchemaFragment(b, nested, indent+1, maxDepth)
		}
	}
}

func typeLabel(ft *schema.FieldType) string {
	if ft.Kind == schema.KindArray && ft.Elem != nil {
		return "array of " + typeLabel(ft.Elem)
	}
	return ft.Kind.String()
}

func nestedStruct(ft *schema.FieldType) *schema.StructType {
	switch ft.Kind {
	case schema.KindObject:
		if ft.Struct != nil {
			return ft.Struct
		}
		return ft.Ref
	case schema.KindArray:
		if ft.Elem != nil {
			return nestedStruct(ft.Elem)
		}
	}
	return nil
}
