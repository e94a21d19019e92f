package store

// Table describes one persisted table: its physical column list and
// how blob and array columns are represented in flat backends.
type Table struct {
	Name string
	// Columns is the stable logical column list, in order.
	Columns []string
	// Flattened maps a JSON blob column to its dotted-flattened
	// sub-column list used by the CSV backend.
	Flattened map[string][]string
	// Typed marks flat columns whose cell content is JSON-decoded on
	// read (arrays, free-typed values, booleans, numbers).
	Typed map[string]bool
}

// Tables is the closed set of persisted schemas. Column names are
// bit-exact across backends.
var Tables = map[string]Table{
	"framework": {
		Name: "framework",
		Columns: []string{
			"id", "name", "description", "path", "version",
			"created_at", "updated_at", "active",
		},
		Typed: map[string]bool{"id": true, "active": true},
	},
	"control": {
		Name: "control",
		Columns: []string{
			"id", "framework_id", "control_parent_id", "control_name",
			"family_name", "control_long_name", "control_text",
			"control_discussion", "control_summary",
			"source_control_mapping_emb", "control_eval_criteria",
			"created_at", "updated_at", "active", "source_control_mapping",
			"order_index", "control_short_summary",
		},
		Typed: map[string]bool{
			"id": true, "framework_id": true, "control_parent_id": true,
			"active": true, "order_index": true,
		},
	},
	"standard": {
		Name: "standard",
		Columns: []string{
			"id", "name", "short_description", "long_description", "path",
			"labels", "created_at", "updated_at", "active", "framework_id",
			"index",
		},
		Typed: map[string]bool{
			"id": true, "labels": true, "active": true,
			"framework_id": true, "index": true,
		},
	},
	"standard_control_mapping": {
		Name: "standard_control_mapping",
		Columns: []string{
			"id", "standard_id", "control_id",
			"additional_selection_parameters", "additional_guidance",
			"created_at", "updated_at",
		},
		Typed: map[string]bool{"id": true, "standard_id": true, "control_id": true},
	},
	"checks": {
		Name: "checks",
		Columns: []string{
			"id", "name", "description", "output_statements", "fix_details",
			"created_by", "category", "metadata", "updated_by",
			"created_at", "updated_at", "is_deleted",
		},
		Flattened: map[string][]string{
			"output_statements": {
				"output_statements.success",
				"output_statements.failure",
				"output_statements.partial",
			},
			"fix_details": {
				"fix_details.description",
				"fix_details.instructions",
				"fix_details.estimated_time",
				"fix_details.automation_available",
			},
			"metadata": {
				"metadata.resource_type",
				"metadata.field_path",
				"metadata.operation.name",
				"metadata.operation.logic",
				"metadata.expected_value",
				"metadata.tags",
				"metadata.severity",
				"metadata.category",
			},
		},
		Typed: map[string]bool{
			"fix_details.instructions":         true,
			"fix_details.automation_available": true,
			"metadata.expected_value":          true,
			"metadata.tags":                    true,
			"is_deleted":                       true,
		},
	},
	"control_checks_mapping": {
		Name: "control_checks_mapping",
		Columns: []string{
			"control_id", "check_id", "created_at", "updated_at", "is_deleted",
		},
		Typed: map[string]bool{"control_id": true, "is_deleted": true},
	},
	"connections": {
		Name: "connections",
		Columns: []string{
			"id", "customer_id", "type", "credentials", "created_at",
			"updated_at", "created_by", "updated_by", "synced_at",
			"sync_status", "sync_error", "sync_frequency", "metadata",
			"is_deleted", "info", "alias",
		},
		Typed: map[string]bool{
			"id": true, "type": true, "credentials": true,
			"metadata": true, "is_deleted": true, "info": true,
		},
	},
	"con_mon_results": {
		Name:    "con_mon_results",
		Columns: conMonResultColumns(false),
		Typed:   conMonResultTyped(),
	},
	"con_mon_results_history": {
		Name:    "con_mon_results_history",
		Columns: conMonResultColumns(true),
		Typed:   conMonResultTyped(),
	},
}

func conMonResultColumns(history bool) []string {
	cols := []string{
		"id", "customer_id", "connection_id", "check_id", "result",
		"result_message", "success_count", "failure_count",
		"success_percentage", "success_resources", "failed_resources",
		"exclusions", "resource_json", "created_at", "updated_at",
	}
	if history {
		cols = append(cols, "archived_at")
	}
	return cols
}

func conMonResultTyped() map[string]bool {
	return map[string]bool{
		"connection_id":      true,
		"success_count":      true,
		"failure_count":      true,
		"success_percentage": true,
		"success_resources":  true,
		"failed_resources":   true,
		"exclusions":         true,
	}
}

// FlatColumns returns the physical CSV header for a table: logical
// columns with blob columns replaced by their flattened lists.
func (t Table) FlatColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		if flat, ok := t.Flattened[col]; ok {
			out = append(out, flat...)
			continue
		}
		out = append(out, col)
	}
	return out
}
