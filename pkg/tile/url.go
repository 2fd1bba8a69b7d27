package tile

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultTemplate is the OpenStreetMap standard layer sharded over its three mirrors.
const DefaultTemplate = "https://{switch:a,b,c}.tile.openstreetmap.org/{z}/{x}/{y}.png"

const (
	switchOpen = "{switch:"
	subdomain  = "{s}"
)

// Template is a parsed tile URL template.
//
// The raw string holds {z}, {x} and {y} placeholders and at most one shard
// directive, either {switch:h1,h2,...} or the short {s} form meaning a, b, c.
type Template struct {
	raw    string
	prefix string // text before the shard directive, or the whole template
	suffix string // text after the shard directive
	hosts  []string
}

// ParseTemplate validates a template string and splits out its shard directive.
func ParseTemplate(raw string) (*Template, error) {
	if raw == "" {
		return nil, fmt.Errorf("tile URL template is empty")
	}
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(raw, p) {
			return nil, fmt.Errorf("tile URL template %q is missing %s", raw, p)
		}
	}

	t := &Template{raw: raw, prefix: raw}

	if begin := strings.Index(raw, switchOpen); begin >= 0 {
		rest := raw[begin+len(switchOpen):]
		end := strings.Index(rest, "}")
		if end < 0 {
			return nil, fmt.Errorf("tile URL template %q has an unterminated {switch:} directive", raw)
		}
		var hosts []string
		for _, h := range strings.Split(rest[:end], ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
		if len(hosts) == 0 {
			return nil, fmt.Errorf("tile URL template %q has an empty {switch:} list", raw)
		}
		t.prefix = raw[:begin]
		t.suffix = rest[end+1:]
		t.hosts = hosts
	} else if begin := strings.Index(raw, subdomain); begin >= 0 {
		t.prefix = raw[:begin]
		t.suffix = raw[begin+len(subdomain):]
		t.hosts = []string{"a", "b", "c"}
	}

	if strings.Contains(t.prefix, subdomain) ||
		strings.Contains(t.suffix, switchOpen) || strings.Contains(t.suffix, subdomain) {
		return nil, fmt.Errorf("tile URL template %q has more than one shard directive", raw)
	}

	return t, nil
}

// String returns the template as given.
func (t *Template) String() string {
	return t.raw
}

// Hosts returns the shard list, nil when the template is not sharded.
func (t *Template) Hosts() []string {
	return t.hosts
}

// Shard returns the host chosen for a tile. The same tile always lands on
// the same mirror, neighbouring tiles round-robin over the list.
func (t *Template) Shard(x, y int) string {
	if len(t.hosts) == 0 {
		return ""
	}
	n := len(t.hosts)
	i := (x + y) % n
	if i < 0 {
		i += n
	}
	return t.hosts[i]
}

// URL resolves the template for one tile.
func (t *Template) URL(c Coordinate) (string, error) {
	s := t.prefix
	if t.hosts != nil {
		s += t.Shard(c.X, c.Y) + t.suffix
	}
	s = strings.ReplaceAll(s, "{z}", strconv.Itoa(c.Z))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(c.X))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(c.Y))

	u, err := url.Parse(s)
	if err != nil {
		return "", &MalformedURLError{URL: s, Coord: c, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &MalformedURLError{URL: s, Coord: c}
	}
	return s, nil
}

// URLFor parses raw and resolves it for tile (x, y, z).
func URLFor(raw string, x, y, z int) (string, error) {
	t, err := ParseTemplate(raw)
	if err != nil {
		return "", err
	}
	return t.URL(Coordinate{X: x, Y: y, Z: z})
}
