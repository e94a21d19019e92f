package result

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/conmonhq/conmon/engine/check"
	"github.com/conmonhq/conmon/engine/resource"
)

// Status is the three-valued aggregate outcome of one check over one
// connection's resources.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial"
)

// Aggregate is the roll-up of per-resource check results for one
// (customer, connection, check) key: the con_mon_results row shape.
type Aggregate struct {
	CustomerID        string
	ConnectionID      int
	CheckID           string
	Result            Status
	ResultMessage     string
	SuccessCount      int
	FailureCount      int
	SuccessPercentage float64
	SuccessResources  []string
	FailedResources   []string
	Exclusions        []string
	ResourceJSON      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Build rolls per-resource results up into one aggregate. Execution
// failures (passed = nil) are excluded from both success and failure
// counts; they only prevent a clean success/failure verdict.
func Build(c *check.Check, results []*check.Result, customerID string, connectionID int) *Aggregate {
	agg := &Aggregate{
		CustomerID:       customerID,
		ConnectionID:     connectionID,
		CheckID:          c.ID,
		SuccessResources: []string{},
		FailedResources:  []string{},
		Exclusions:       []string{},
	}
	var evaluated []*resource.Resource
	for _, r := range results {
		if r.Resource != nil {
			evaluated = append(evaluated, r.Resource)
		}
		if r.Passed == nil {
			continue
		}
		if *r.Passed {
			agg.SuccessCount++
			agg.SuccessResources = append(agg.SuccessResources, resourceID(r))
		} else {
			agg.FailureCount++
			agg.FailedResources = append(agg.FailedResources, resourceID(r))
		}
	}
	if total := agg.SuccessCount + agg.FailureCount; total > 0 {
		agg.SuccessPercentage = 100 * float64(agg.SuccessCount) / float64(total)
	}
	agg.Result = verdict(agg.SuccessCount, agg.FailureCount)
	agg.ResultMessage = message(c, agg)
	if data, err := json.Marshal(evaluated); err == nil {
		agg.ResourceJSON = string(data)
	}
	now := time.Now().UTC()
	agg.CreatedAt = now
	agg.UpdatedAt = now
	return agg
}

func verdict(success, failure int) Status {
	switch {
	case failure == 0 && success > 0:
		return StatusSuccess
	case success == 0 && failure > 0:
		return StatusFailure
	default:
		return StatusPartial
	}
}

func message(c *check.Check, agg *Aggregate) string {
	var stated string
	switch agg.Result {
	case StatusSuccess:
		stated = c.OutputStatements.Success
	case StatusFailure:
		stated = c.OutputStatements.Failure
	default:
		stated = c.OutputStatements.Partial
	}
	if stated != "" {
		return stated
	}
	return fmt.Sprintf(
		"%d of %d resources passed check %s",
		agg.SuccessCount, agg.SuccessCount+agg.FailureCount, c.Name,
	)
}

func resourceID(r *check.Result) string {
	if r.Resource != nil {
		return r.Resource.ID
	}
	return ""
}

// Row serialises the aggregate to its stored column shape. The id
// column is left to the backend to mint.
func (a *Aggregate) Row() map[string]any {
	return map[string]any{
		"customer_id":        a.CustomerID,
		"connection_id":      a.ConnectionID,
		"check_id":           a.CheckID,
		"result":             string(a.Result),
		"result_message":     a.ResultMessage,
		"success_count":      a.SuccessCount,
		"failure_count":      a.FailureCount,
		"success_percentage": a.SuccessPercentage,
		"success_resources":  a.SuccessResources,
		"failed_resources":   a.FailedResources,
		"exclusions":         a.Exclusions,
		"resource_json":      a.ResourceJSON,
		"created_at":         a.CreatedAt,
		"updated_at":         a.UpdatedAt,
	}
}
