package headers

import (
	"fmt"
	"strings"
)

// keyValParse parses a list of key=value entries, where values may be
// enclosed in double quotes.
func keyValParse(str string, separator byte) (map[string]string, error) {
	ret := make(map[string]string)

	for len(str) > 0 {
		eq := strings.IndexByte(str, '=')
		if eq <= 0 || strings.IndexByte(str[:eq], separator) >= 0 {
			return nil, fmt.Errorf("unable to read key (%v)", str)
		}
		key := str[:eq]
		str = str[eq+1:]

		var val string
		switch {
		case len(str) > 0 && str[0] == '"':
			end := strings.IndexByte(str[1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("quotes not closed (%v)", str)
			}
			val = str[1 : 1+end]
			str = str[2+end:]

		default:
			if i := strings.IndexByte(str, separator); i >= 0 {
				val = str[:i]
				str = str[i:]
			} else {
				val = str
				str = ""
			}
		}

		ret[key] = val

		// skip the separator and any spaces before the next key
		if len(str) > 0 && str[0] == separator {
			str = str[1:]
		}
		str = strings.TrimLeft(str, " ")
	}

	return ret, nil
}
