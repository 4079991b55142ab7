package kernel

import (
	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/expr"
)

// Operands are the value-carrying parts of an expression tree, collected in
// the same depth-first order the plan builder assigns slots in. Views are
// validated against their backing buffers and flattened to rank 1.
type Operands struct {
	Views []array.View
	Lits  []float64
	RedN  []int // element count per reduction, in plan order
	N     int   // element count of the root
}

// CollectOperands walks the tree and gathers every leaf occurrence. Shared
// subtrees are visited once per occurrence, matching the generated kernel's
// binding layout.
func CollectOperands(root *expr.Node) (*Operands, error) {
	ops := &Operands{N: root.NumElements()}
	if err := ops.walk(root); err != nil {
		return nil, err
	}
	return ops, nil
}

func (o *Operands) walk(n *expr.Node) error {
	switch n.Kind() {
	case expr.KindView:
		v := n.View()
		if err := v.Validate(); err != nil {
			return err
		}
		flat, err := v.Flatten()
		if err != nil {
			return err
		}
		o.Views = append(o.Views, flat)
		return nil

	case expr.KindLiteral:
		o.Lits = append(o.Lits, n.Literal())
		return nil

	case expr.KindReduce:
		o.RedN = append(o.RedN, n.Args()[0].NumElements())
		return o.walk(n.Args()[0])

	default:
		for _, arg := range n.Args() {
			if err := o.walk(arg); err != nil {
				return err
			}
		}
		return nil
	}
}
