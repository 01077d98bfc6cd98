package sigv4

import (
	"fmt"
	"net/url"
)

// List is a Query API list parameter. Member lists flatten to
// Key.member.N, plain lists to Key.N. N is 1-based.
type List struct {
	Items []string
	Plain bool
}

// Member wraps items as a Key.member.N list.
func Member(items ...string) List { return List{Items: items} }

// Flat wraps items as a Key.N list (older Query API generations).
func Flat(items ...string) List { return List{Items: items, Plain: true} }

// BuildQueryBody renders the form-encoded body of a Query API call.
// Supported parameter values: string, List, and []map[string]string
// for structured members (Key.member.N.SubKey).
func BuildQueryBody(action, version string, params map[string]any) string {
	values := url.Values{}
	values.Set("Action", action)
	values.Set("Version", version)

	for key, raw := range params {
		switch v := raw.(type) {
		case string:
			values.Set(key, v)
		case List:
			for i, item := range v.Items {
				if v.Plain {
					values.Set(fmt.Sprintf("%s.%d", key, i+1), item)
				} else {
					values.Set(fmt.Sprintf("%s.member.%d", key, i+1), item)
				}
			}
		case []map[string]string:
			for i, member := range v {
				for sub, item := range member {
					values.Set(fmt.Sprintf("%s.member.%d.%s", key, i+1, sub), item)
				}
			}
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}

	return values.Encode()
}
