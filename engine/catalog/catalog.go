// Package catalog models the regulatory reference data: frameworks,
// controls, standards and their mappings. The kernel reads this data;
// it is imported from authoritative sources and never mutated here.
package catalog

import (
	"strings"
	"time"
)

// Framework is a catalog of controls, e.g. NIST 800-53.
type Framework struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Path        string    `json:"path"`
	Version     string    `json:"version"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Control is the human-authored requirement an automated check
// targets.
type Control struct {
	ID              int       `json:"id"`
	FrameworkID     int       `json:"framework_id"`
	ControlParentID int       `json:"control_parent_id"`
	ControlName     string    `json:"control_name"`
	FamilyName      string    `json:"family_name"`
	ControlLongName string    `json:"control_long_name"`
	ControlText     string    `json:"control_text"`
	Active          bool      `json:"active"`
	OrderIndex      int       `json:"order_index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Family returns the alpha prefix of the control name (AC-2 -> AC).
func (c *Control) Family() string {
	name := strings.TrimSpace(c.ControlName)
	for i, r := range name {
		if r == '-' || (r >= '0' && r <= '9') {
			return name[:i]
		}
	}
	return name
}

// FamilyDefaults maps a control family to suggested severity and
// category for generated checks.
func FamilyDefaults(family string) (severity, category string) {
	switch strings.ToUpper(family) {
	case "AC":
		return "high", "access_control"
	case "AU":
		return "medium", "monitoring"
	case "CM":
		return "medium", "configuration"
	case "IA":
		return "high", "access_control"
	case "SC":
		return "high", "network_security"
	case "SI":
		return "medium", "monitoring"
	default:
		return "medium", "configuration"
	}
}

// Standard is an industry standard mapped onto controls.
type Standard struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	ShortDescription string    `json:"short_description"`
	LongDescription  string    `json:"long_description"`
	Path             string    `json:"path"`
	Labels           []string  `json:"labels"`
	FrameworkID      int       `json:"framework_id"`
	Index            int       `json:"index"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StandardControlMapping joins standards to controls. Read-only to
// the kernel.
type StandardControlMapping struct {
	ID                            int       `json:"id"`
	StandardID                    int       `json:"standard_id"`
	ControlID                     int       `json:"control_id"`
	AdditionalSelectionParameters string    `json:"additional_selection_parameters"`
	AdditionalGuidance            string    `json:"additional_guidance"`
	CreatedAt                     time.Time `json:"created_at"`
	UpdatedAt                     time.Time `json:"updated_at"`
}

// ControlCheckMapping joins generated checks to the controls they
// satisfy.
type ControlCheckMapping struct {
	ControlID int       `json:"control_id"`
	CheckID   string    `json:"check_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
}
