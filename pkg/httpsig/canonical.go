package httpsig

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildSigningString assembles the canonical signature input for params,
// in the order params.Headers lists, per draft-cavage §2.3.
//
// Pseudo-headers:
//
//	(request-target) -> "{method-lower} {path-and-query}"
//	(created)         -> params.Created as decimal seconds
//	(expires)         -> params.Expires as decimal seconds
//
// headerValues supplies the actual value(s) of every non-pseudo header
// named in params.Headers; multiple values for the same header are joined
// with ", " in the order given. The trailing newline after the last entry
// is omitted.
func BuildSigningString(params *SignatureParams, method, requestTarget string, headerValues map[string][]string) (string, error) {
	if len(params.Headers) == 0 {
		return "", fmt.Errorf("build signing string: headers list is empty")
	}

	lines := make([]string, 0, len(params.Headers))
	for _, name := range params.Headers {
		var value string
		switch name {
		case "(request-target)":
			value = strings.ToLower(method) + " " + requestTarget
		case "(created)":
			if params.Created == nil {
				return "", fmt.Errorf("build signing string: (created) listed but created is unset")
			}
			value = strconv.FormatInt(*params.Created, 10)
		case "(expires)":
			if params.Expires == nil {
				return "", fmt.Errorf("build signing string: (expires) listed but expires is unset")
			}
			value = strconv.FormatInt(*params.Expires, 10)
		default:
			vals, ok := headerValues[name]
			if !ok || len(vals) == 0 {
				return "", fmt.Errorf("build signing string: missing value for header %q", name)
			}
			value = strings.Join(vals, ", ")
		}
		lines = append(lines, name+": "+value)
	}

	return strings.Join(lines, "\n"), nil
}
