// Package record provides the in-memory record model and the binary record
// serializer for the OrientDB wire protocol.
package record

import (
	"fmt"
	"strconv"
	"strings"
)

// RID identifies a record by its cluster id and position within the cluster.
// Compared by value; the zero value is not a valid identity, use NewRID or
// ParseRID.
type RID struct {
	ClusterID int16
	Position  int64
}

// NullRID is the unassigned record id sent for records not yet persisted.
var NullRID = RID{ClusterID: -1, Position: -1}

// NewRID creates a record id from its parts
func NewRID(clusterID int16, position int64) RID {
	return RID{ClusterID: clusterID, Position: position}
}

// String formats the id in the #cluster:position notation
func (r RID) String() string {
	return fmt.Sprintf("#%d:%d", r.ClusterID, r.Position)
}

// IsValid reports whether the id refers to a persisted record. Decoded
// responses never carry a negative cluster id.
func (r RID) IsValid() bool {
	return r.ClusterID >= 0 && r.Position >= 0
}

// ParseRID parses the #cluster:position notation, with or without the
// leading #
func ParseRID(s string) (RID, error) {
	trimmed := strings.TrimPrefix(s, "#")
	parts := strings.SplitN(trimmed, ":", 2)
	if len(parts) != 2 {
		return RID{}, fmt.Errorf("invalid record id %q: want #cluster:position", s)
	}
	cluster, err := strconv.ParseInt(parts[0], 10, 16)
	if err != nil {
		return RID{}, fmt.Errorf("invalid cluster id in %q: %w", s, err)
	}
	position, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return RID{}, fmt.Errorf("invalid position in %q: %w", s, err)
	}
	return RID{ClusterID: int16(cluster), Position: position}, nil
}
