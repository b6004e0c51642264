package pipeline

import (
	"github.com/roach88/pipetest/internal/ir"
)

// Digest returns a content digest of the graph shape: transform names,
// kinds, wiring and created elements. Function bodies are not part of the
// digest. Two pipelines with the same digest have the same structure.
func Digest(p *Pipeline) (string, error) {
	nodes := make(ir.List, 0, len(p.transforms))
	for _, t := range p.transforms {
		node := ir.Record{
			"name":  ir.String(t.Name),
			"kind":  ir.String(string(t.Kind)),
			"input": ir.Int(t.Input),
		}
		if t.Kind == KindCreate {
			node["values"] = ir.List(t.Values)
		}
		nodes = append(nodes, node)
	}
	data, err := ir.Marshal(ir.Record{
		"name":       ir.String(p.name),
		"transforms": nodes,
	})
	if err != nil {
		return "", err
	}
	return ir.Digest(ir.DomainPipeline, data), nil
}
