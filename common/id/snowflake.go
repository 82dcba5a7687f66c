package id

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a time-ordered unique int64 ID. Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}

// NewString returns New formatted in base 10, the form snapshot ids are
// stored and hashed in. Falls back to node 0 if Init was never called.
func NewString() string {
	_ = Init(0)
	return strconv.FormatInt(New(), 10)
}
