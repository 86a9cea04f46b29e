package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixUser    = "user"
	PrefixBoard   = "board"
	PrefixElement = "el"
	PrefixEdge    = "edge"
	PrefixOp      = "op"
	PrefixAsset   = "asset"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewUserID() string    { return New(PrefixUser) }
func NewBoardID() string   { return New(PrefixBoard) }
func NewElementID() string { return New(PrefixElement) }
func NewEdgeID() string    { return New(PrefixEdge) }
func NewOpID() string      { return New(PrefixOp) }
func NewAssetID() string   { return New(PrefixAsset) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
