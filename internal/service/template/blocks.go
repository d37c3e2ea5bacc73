package template

import "regexp"

const contentBlock = "content"

var blockRe = regexp.MustCompile(`(?s)\{%-?\s*block\s+(\w+)\s*-?%\}(.*?)\{%-?\s*endblock(?:\s+\w+)?\s*-?%\}`)

// parseBlocks returns the named block bodies defined in src.
func parseBlocks(src string) map[string]string {
	matches := blockRe.FindAllStringSubmatch(src, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		out[m[1]] = m[2]
	}
	return out
}

// overlay replaces block bodies in parent with the child's definitions.
// Block markers are kept so a further descendant can override again.
func overlay(parent, child string) string {
	blocks := parseBlocks(child)
	if blocks == nil {
		blocks = map[string]string{contentBlock: child}
	}
	return blockRe.ReplaceAllStringFunc(parent, func(region string) string {
		m := blockRe.FindStringSubmatch(region)
		body, ok := blocks[m[1]]
		if !ok {
			return region
		}
		return "{% block " + m[1] + " %}" + body + "{% endblock %}"
	})
}

// stripBlocks removes block markers, leaving their bodies in place.
func stripBlocks(src string) string {
	return blockRe.ReplaceAllString(src, "$2")
}

// flatten merges a root-first chain of sources into one Liquid source.
func flatten(chain []string) string {
	if len(chain) == 0 {
		return ""
	}
	out := chain[0]
	for _, child := range chain[1:] {
		out = overlay(out, child)
	}
	return stripBlocks(out)
}
