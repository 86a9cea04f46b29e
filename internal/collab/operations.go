package collab

import (
	"errors"
	"fmt"
	"time"

	"github.com/inamate/canvas/internal/store"
)

var ErrInvalidOperation = errors.New("invalid operation")

// ApplyOperation applies op to the board store. For element.add and
// edge.add it returns the id of the new item; the op is updated to carry
// it so the broadcast matches what was stored.
func ApplyOperation(st *store.Memory, op *Operation) (string, error) {
	switch op.Type {
	case OpElementAdd:
		return applyElementAdd(st, op)
	case OpElementUpdate:
		if op.Patch == nil || op.Patch.IsEmpty() {
			return "", fmt.Errorf("%s %s: empty patch: %w", op.Type, op.ElementID, ErrInvalidOperation)
		}
		return "", st.UpdateElement(op.ElementID, *op.Patch)
	case OpElementMove:
		if len(op.ElementIDs) == 0 {
			return "", fmt.Errorf("%s: no elements: %w", op.Type, ErrInvalidOperation)
		}
		return "", st.MoveElements(op.ElementIDs, op.DX, op.DY)
	case OpElementDelete:
		return "", st.DeleteElement(op.ElementID)
	case OpEdgeAdd:
		return applyEdgeAdd(st, op)
	case OpEdgeUpdate:
		if op.EdgePatch == nil {
			return "", fmt.Errorf("%s %s: empty patch: %w", op.Type, op.EdgeID, ErrInvalidOperation)
		}
		return "", st.UpdateEdge(op.EdgeID, *op.EdgePatch)
	case OpEdgeDelete:
		return "", st.DeleteEdge(op.EdgeID)
	default:
		return "", fmt.Errorf("unknown operation type %q: %w", op.Type, ErrInvalidOperation)
	}
}

func applyElementAdd(st *store.Memory, op *Operation) (string, error) {
	if op.Element == nil {
		return "", fmt.Errorf("%s: missing element: %w", op.Type, ErrInvalidOperation)
	}
	el, err := op.Element.Decode()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op.Type, err)
	}
	id, err := st.AddElement(el)
	if err != nil {
		return "", err
	}
	op.Element.ID = id
	op.ElementID = id
	return id, nil
}

func applyEdgeAdd(st *store.Memory, op *Operation) (string, error) {
	if op.Edge == nil {
		return "", fmt.Errorf("%s: missing edge: %w", op.Type, ErrInvalidOperation)
	}
	id, err := st.AddEdge(*op.Edge)
	if err != nil {
		return "", err
	}
	// Points are derived; clients get them from the stored edge.
	if edge, ok := st.Snapshot().Edges[id]; ok {
		*op.Edge = edge
	}
	op.EdgeID = id
	return id, nil
}

// GetServerTimestamp returns the current server timestamp
func GetServerTimestamp() int64 {
	return time.Now().UnixMilli()
}
