package pathutil

import "strings"

const (
	Separator = "/"
	Root      = "/"
	RootLabel = "Root"
)

type Breadcrumb struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// ParentOf returns the directory containing path. Root and the empty path
// are their own parent.
func ParentOf(path string) string {
	if path == "" || path == Root {
		return Root
	}

	trimmed := strings.TrimSuffix(path, Separator)
	idx := strings.LastIndex(trimmed, Separator)
	if idx <= 0 {
		return Root
	}
	return trimmed[:idx]
}

// Breadcrumbs splits path into navigable crumbs. The root crumb is always
// first and every crumb carries its cumulative path.
func Breadcrumbs(path string) []Breadcrumb {
	crumbs := []Breadcrumb{{Label: RootLabel, Path: Root}}

	current := ""
	for _, part := range strings.Split(path, Separator) {
		if part == "" {
			continue
		}
		current += Separator + part
		crumbs = append(crumbs, Breadcrumb{Label: part, Path: current})
	}
	return crumbs
}

// Join builds the path of a child entry the same way the backend reports it.
func Join(dir, name string) string {
	return strings.TrimRight(dir, Separator) + Separator + name
}

// Normalize collapses repeated separators and drops a trailing one so that
// cache keys for "/a//b/" and "/a/b" agree.
func Normalize(path string) string {
	crumbs := Breadcrumbs(path)
	return crumbs[len(crumbs)-1].Path
}
