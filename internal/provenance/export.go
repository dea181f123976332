package provenance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ptts-corpus/ptts/internal/store"
)

// ChainExport is the plain JSON rendering of a chain: the node itself plus
// every ancestor back to its root document, root first.
type ChainExport struct {
	Nodes      []NodeExport `json:"nodes"`
	IsComplete bool         `json:"is_complete"`
}

// NodeExport flattens a ProvenanceRecord's JSON-encoded columns into plain
// values for external consumption.
type NodeExport struct {
	ID               string         `json:"id"`
	Type             string         `json:"type"`
	SourceType       string         `json:"source_type"`
	RootDocumentID   string         `json:"root_document_id"`
	ContentHash      string         `json:"content_hash"`
	Processor        string         `json:"processor"`
	ProcessorVersion string         `json:"processor_version"`
	ParentID         *string        `json:"parent_id,omitempty"`
	ParentIDs        []string       `json:"parent_ids"`
	ChainDepth       int            `json:"chain_depth"`
	ChainPath        []string       `json:"chain_path"`
	Location         map[string]any `json:"location,omitempty"`
	CreatedAt        string         `json:"created_at"`
}

// ExportChain renders the chain ending at id as ChainExport, root first.
func (e *Engine) ExportChain(ctx context.Context, id string) (*ChainExport, error) {
	chain, err := e.GetChain(ctx, id)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, nil
	}

	nodes := append(append([]*store.ProvenanceRecord{}, chain.Ancestors...), chain.Current)
	out := &ChainExport{IsComplete: chain.IsComplete}
	for _, n := range nodes {
		ne, err := toNodeExport(n)
		if err != nil {
			return nil, err
		}
		out.Nodes = append(out.Nodes, ne)
	}
	return out, nil
}

func toNodeExport(n *store.ProvenanceRecord) (NodeExport, error) {
	var parentIDs []string
	if err := json.Unmarshal([]byte(n.ParentIDsJSON), &parentIDs); err != nil {
		return NodeExport{}, fmt.Errorf("export: unmarshal parent_ids for %s: %w", n.ID, err)
	}
	var chainPath []string
	if err := json.Unmarshal([]byte(n.ChainPathJSON), &chainPath); err != nil {
		return NodeExport{}, fmt.Errorf("export: unmarshal chain_path for %s: %w", n.ID, err)
	}
	var location map[string]any
	if n.LocationJSON != nil {
		if err := json.Unmarshal([]byte(*n.LocationJSON), &location); err != nil {
			return NodeExport{}, fmt.Errorf("export: unmarshal location for %s: %w", n.ID, err)
		}
	}

	return NodeExport{
		ID:               n.ID,
		Type:             string(n.Type),
		SourceType:       n.SourceType,
		RootDocumentID:   n.RootDocumentID,
		ContentHash:      n.ContentHash,
		Processor:        n.Processor,
		ProcessorVersion: n.ProcessorVersion,
		ParentID:         n.ParentID,
		ParentIDs:        parentIDs,
		ChainDepth:       n.ChainDepth,
		ChainPath:        chainPath,
		Location:         location,
		CreatedAt:        n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

// W3CDocument is a minimal W3C PROV-style attribution document: each
// provenance node becomes a prov:Entity, wasGeneratedBy/wasDerivedFrom
// relations capture the processor and parent edges, per PROV-DM's
// entity/activity/derivation model.
type W3CDocument struct {
	Context string                    `json:"@context"`
	Entity  map[string]W3CEntity      `json:"entity"`
	Activity map[string]W3CActivity   `json:"activity"`
	WasGeneratedBy map[string]W3CEdge `json:"wasGeneratedBy"`
	WasDerivedFrom map[string]W3CEdge `json:"wasDerivedFrom,omitempty"`
}

// W3CEntity is one prov:Entity: a provenance node addressed by content hash.
type W3CEntity struct {
	Type        string `json:"prov:type"`
	ContentHash string `json:"ptts:contentHash"`
	GeneratedAt string `json:"prov:generatedAtTime"`
}

// W3CActivity is one prov:Activity: the processor that produced an entity.
type W3CActivity struct {
	Type    string `json:"prov:type"`
	Version string `json:"ptts:processorVersion"`
}

// W3CEdge relates an entity to the activity that generated it, or to the
// entity it was derived from.
type W3CEdge struct {
	Entity   string `json:"prov:entity"`
	Activity string `json:"prov:activity,omitempty"`
	Used     string `json:"prov:used,omitempty"`
}

// ExportW3C renders the chain ending at id as a W3C PROV-DM attribution
// document. Every node is an entity generated by an activity named after
// its processor; parent edges become wasDerivedFrom relations.
func (e *Engine) ExportW3C(ctx context.Context, id string) (*W3CDocument, error) {
	export, err := e.ExportChain(ctx, id)
	if err != nil {
		return nil, err
	}
	if export == nil {
		return nil, nil
	}

	doc := &W3CDocument{
		Context:        "https://www.w3.org/ns/prov",
		Entity:         make(map[string]W3CEntity),
		Activity:       make(map[string]W3CActivity),
		WasGeneratedBy: make(map[string]W3CEdge),
		WasDerivedFrom: make(map[string]W3CEdge),
	}

	for _, n := range export.Nodes {
		entityID := "ptts:" + n.ID
		activityID := "ptts:activity:" + n.ID

		doc.Entity[entityID] = W3CEntity{
			Type:        "ptts:" + n.Type,
			ContentHash: n.ContentHash,
			GeneratedAt: n.CreatedAt,
		}
		doc.Activity[activityID] = W3CActivity{
			Type:    "ptts:" + n.Processor,
			Version: n.ProcessorVersion,
		}
		doc.WasGeneratedBy[entityID] = W3CEdge{Entity: entityID, Activity: activityID}

		if n.ParentID != nil {
			doc.WasDerivedFrom[entityID] = W3CEdge{Entity: entityID, Used: "ptts:" + *n.ParentID}
		}
	}

	return doc, nil
}
