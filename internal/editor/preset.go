package editor

import (
	"github.com/rendis/attackchain/internal/catalog"
	"github.com/rendis/attackchain/internal/streaming"
	"github.com/rendis/attackchain/pkg/schema"
)

// LoadPreset appends the templates of a catalog preset in order, chains
// them with sequence edges and lays the whole chain out on the grid.
func (e *Editor) LoadPreset(cat *catalog.Catalog, presetID string) ([]schema.Node, error) {
	refs, err := cat.PresetTemplates(presetID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.unlock()

	added := make([]schema.Node, 0, len(refs))
	ids := make([]string, 0, len(refs))
	var edgeIDs []string
	for i, ref := range refs {
		n := e.graph.AddNode(ref, schema.Point{})
		if i > 0 {
			if edge, ok := e.graph.AddEdge(added[i-1].ID, n.ID, schema.EdgeTypeSequence); ok {
				edgeIDs = append(edgeIDs, edge.ID)
			}
		}
		added = append(added, n)
		ids = append(ids, n.ID)
	}
	e.commit("load_preset", streaming.ChangeEvent{Kind: schema.EventNodeAdded, NodeIDs: ids, EdgeIDs: edgeIDs, Payload: presetID})
	e.arrange(LayoutGrid)

	for i := range added {
		added[i], _ = e.graph.Node(added[i].ID)
	}
	return added, nil
}

// AddFromCatalog places a catalog template by id at a logical position.
func (e *Editor) AddFromCatalog(cat *catalog.Catalog, templateID string, pos schema.Point) (schema.Node, error) {
	tpl, ok := cat.Get(templateID)
	if !ok {
		return schema.Node{}, schema.NewErrorf(schema.ErrCodeNotFound, "template %q not found", templateID)
	}
	return e.AddNode(tpl.Ref(), pos), nil
}
