// Package folders provides a context collector for studio project trees laid
// out as <project>/animation/<folder>/<parent>/<name>/... . Register it with a
// blank import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/folders"
//
// It sorts after the default collector and reads its dirname key.
package folders

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ferro-labs/review4d/plugin"
)

// FactoryName is the name the collector is registered under.
const FactoryName = "project-folders"

func init() {
	plugin.RegisterFactory(FactoryName, func() any {
		return New()
	})
}

// DefaultPatterns are tried in order; the first that matches wins.
var DefaultPatterns = []string{
	`/animation/3d/(?P<folder>.*?)/(?P<parent>.*?)/(?P<name>.*?)(/|$)`,
	`/animation/(?P<folder>.*?)/(?P<parent>.*?)/(?P<name>.*?)(/|$)`,
	`/creative/(?P<folder>.*?)/(?P<parent>.*?)/(?P<name>.*?)(/|$)`,
}

var groups = []string{"folder", "parent", "name"}

// Collector sets project, project_root, folder, parent and name.
//
// Example, for /projects/Project/animation/3d/shots/seq/seq_010/work/a.c4d:
//
//	project:      Project
//	project_root: /projects/Project
//	folder:       shots
//	parent:       seq
//	name:         seq_010
type Collector struct {
	plugin.Meta
	patterns []*regexp.Regexp
}

// New returns a collector using DefaultPatterns.
func New() *Collector {
	c := &Collector{Meta: plugin.Meta{Name: "Project Folders", Rank: 10}}
	for _, p := range DefaultPatterns {
		c.patterns = append(c.patterns, regexp.MustCompile("(?i)"+p))
	}
	return c
}

// Init replaces the pattern list with config["patterns"]. Each pattern must
// declare the folder, parent and name groups. Matching is always
// case-insensitive.
func (c *Collector) Init(config map[string]interface{}) error {
	raw, ok := config["patterns"]
	if !ok {
		return nil
	}
	var list []string
	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("patterns: expected strings, got %T", item)
			}
			list = append(list, s)
		}
	case []string:
		list = v
	default:
		return fmt.Errorf("patterns: expected a list, got %T", raw)
	}
	if len(list) == 0 {
		return fmt.Errorf("patterns: at least one pattern is required")
	}

	compiled := make([]*regexp.Regexp, 0, len(list))
	for _, p := range list {
		re, err := Compile(p)
		if err != nil {
			return err
		}
		compiled = append(compiled, re)
	}
	c.patterns = compiled
	return nil
}

// Compile compiles a folder pattern case-insensitively and checks its groups.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	for _, g := range groups {
		if re.SubexpIndex(g) < 0 {
			return nil, fmt.Errorf("pattern %q: missing named group %q", pattern, g)
		}
	}
	return re, nil
}

// Collect matches path against the patterns and merges the project keys
// into ctx.
func (c *Collector) Collect(path string, ctx plugin.Context) (plugin.Context, error) {
	if ctx == nil {
		ctx = plugin.Context{}
	}
	found := map[string]string{
		"project":      "",
		"project_root": "",
		"folder":       "",
		"parent":       "",
		"name":         "",
	}

	subject := strings.ReplaceAll(path, `\`, "/")
	for _, re := range c.patterns {
		m := re.FindStringSubmatchIndex(subject)
		if m == nil {
			continue
		}
		for _, g := range groups {
			i := re.SubexpIndex(g)
			if m[2*i] >= 0 {
				found[g] = path[m[2*i]:m[2*i+1]]
			}
		}
		root := path[:m[0]]
		found["project_root"] = root
		found["project"] = lastSegment(root)
		break
	}

	if found["project_root"] == "" {
		found["project_root"] = ctx["dirname"]
	}
	for k, v := range found {
		ctx[k] = v
	}
	return ctx, nil
}

func lastSegment(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
