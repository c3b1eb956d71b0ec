package cli

import (
	"fmt"
	"strconv"
	"strings"

	"newsdesk/internal/mutate"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, mutate.ValidationError{Field: "id", Reason: fmt.Sprintf("not a valid id: %q", raw)}
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	out := make([]int64, 0, len(args))
	for _, a := range args {
		// Accept "3,1,2" as well as separate arguments.
		for _, part := range strings.Split(a, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
	}
	return out, nil
}
