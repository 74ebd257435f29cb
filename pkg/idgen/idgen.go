// Package idgen generates unique IDs from a snowflake node.
package idgen

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init creates the process-wide snowflake node. Subsequent calls are no-ops.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// ensure lazily initializes with node 1 so library consumers and tests work
// without explicit Init.
func ensure() *snowflake.Node {
	if node == nil {
		_ = Init(1)
	}
	return node
}

// GenID returns the next snowflake ID.
func GenID() int64 {
	return ensure().Generate().Int64()
}

// GenIDString returns the next snowflake ID as a decimal string.
func GenIDString() string {
	return strconv.FormatInt(GenID(), 10)
}

// GenPrefixedID returns prefix + "-" + id, e.g. "ORD-1849301...".
func GenPrefixedID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, GenID())
}
