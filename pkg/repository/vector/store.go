// Package vector implements tenant-scoped vector storage over PostgreSQL
// with the pgvector extension. Two stores share the same semantics: a
// content store holding one record per chunk and a catalog store holding one
// record per item. Every read and write is scoped by tenant.
package vector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultBatchSize bounds sub-batches during bulk ingestion.
const DefaultBatchSize = 50

// ErrThresholdNotConfigured is returned by store constructors when no
// similarity threshold was supplied. There is deliberately no default: a
// missing threshold is a configuration fault, not a signal to match
// everything.
var ErrThresholdNotConfigured = errors.New("similarity threshold is not configured")

// TenantIsolationError reports a row read back with a tenant other than the
// one queried. This is a programming-invariant failure, never user error.
type TenantIsolationError struct {
	Requested uuid.UUID
	Got       uuid.UUID
}

func (e *TenantIsolationError) Error() string {
	return fmt.Sprintf("tenant isolation violation: queried tenant %s, row belongs to %s", e.Requested, e.Got)
}

// encodeVector renders a pgvector literal, e.g. "[0.1,0.2,0.3]".
func encodeVector(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func validateThreshold(threshold float64) error {
	if threshold == 0 {
		return ErrThresholdNotConfigured
	}
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %v", threshold)
	}
	return nil
}
