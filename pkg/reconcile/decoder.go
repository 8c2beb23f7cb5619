package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformedPayload means an upstream page could not be decoded.
var ErrMalformedPayload = errors.New("malformed upstream payload")

// Decoder extracts the item list and the collection total from one
// upstream page.
type Decoder interface {
	Decode(data []byte) (items []json.RawMessage, total int, err error)
}

// ImagesDecoder decodes images-api.nasa.gov search pages:
//
//	{"collection": {"items": [...], "metadata": {"total_hits": 1234}}}
//
// A missing item list or total reads as empty and zero.
type ImagesDecoder struct{}

// Decode implements Decoder.
func (ImagesDecoder) Decode(data []byte) ([]json.RawMessage, int, error) {
	return decodePath(data, "collection.items", "collection.metadata.total_hits")
}

// PathDecoder decodes pages whose items and total live at arbitrary gjson paths.
type PathDecoder struct {
	ItemsPath string
	TotalPath string
}

// Decode implements Decoder.
func (d PathDecoder) Decode(data []byte) ([]json.RawMessage, int, error) {
	return decodePath(data, d.ItemsPath, d.TotalPath)
}

func decodePath(data []byte, itemsPath, totalPath string) ([]json.RawMessage, int, error) {
	if !gjson.ValidBytes(data) {
		return nil, 0, fmt.Errorf("%w: invalid json", ErrMalformedPayload)
	}

	result := gjson.ParseBytes(data)

	items := result.Get(itemsPath)
	if items.Exists() && !items.IsArray() && items.Type != gjson.Null {
		return nil, 0, fmt.Errorf("%w: %s is not an array", ErrMalformedPayload, itemsPath)
	}

	out := make([]json.RawMessage, 0, len(items.Array()))
	items.ForEach(func(_, value gjson.Result) bool {
		out = append(out, json.RawMessage(value.Raw))
		return true
	})

	total := 0
	if t := result.Get(totalPath); t.Exists() {
		if t.Type != gjson.Number {
			return nil, 0, fmt.Errorf("%w: %s is not a number", ErrMalformedPayload, totalPath)
		}
		total = int(t.Int())
	}

	return out, total, nil
}
