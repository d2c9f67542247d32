// Package id issues identifiers for catalog items, orders and payment attempts.
package id

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// UUIDGenerator issues random v4 ids for items and orders.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// ReferencePrefix starts every external reference sent to the payment provider.
const ReferencePrefix = "coffeerealmpos_"

// ReferenceGenerator issues time ordered, unique external references for
// invoice attempts, e.g. coffeerealmpos_1899471011387260928.
type ReferenceGenerator struct {
	node *snowflake.Node
}

// NewReferenceGenerator builds a generator for the given snowflake node (0..1023).
func NewReferenceGenerator(node int64) (*ReferenceGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("id: snowflake node %d: %w", node, err)
	}
	return &ReferenceGenerator{node: n}, nil
}

func (g *ReferenceGenerator) NewID() string {
	return ReferencePrefix + g.node.Generate().String()
}

// OrderNumbers issues receipt numbers such as ORD20250314042.
type OrderNumbers struct{}

func NewOrderNumbers() OrderNumbers { return OrderNumbers{} }

func (OrderNumbers) NewNumber(now time.Time) string {
	return order.NewNumber(now, rand.IntN)
}
