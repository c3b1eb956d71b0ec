package web

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexID accepts an id as a JSON number or a numeric string. Browsers read ids
// back from DOM data attributes, so both forms arrive.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", string(b))
	}
	*f = flexID(n)
	return nil
}

type idList []int64

func (l *idList) UnmarshalJSON(b []byte) error {
	var raw []flexID
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]int64, 0, len(raw))
	for _, id := range raw {
		out = append(out, int64(id))
	}
	*l = out
	return nil
}
