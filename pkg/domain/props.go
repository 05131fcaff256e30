package domain

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeProps decodes the page props into dst, a pointer to a struct or map.
// Struct fields are matched by their json tag.
func DecodeProps(page *Page, dst any) error {
	generic := make(map[string]any, len(page.props))
	for k, v := range page.props {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("failed to decode prop %q: %w", k, err)
		}
		generic[k] = val
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build props decoder: %w", err)
	}
	if err := dec.Decode(generic); err != nil {
		return fmt.Errorf("failed to decode props: %w", err)
	}
	return nil
}
