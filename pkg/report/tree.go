package report

import (
	"path"
	"sort"
	"strings"

	"contxt/pkg/flatten"
)

type treeNode struct {
	name     string
	children map[string]*treeNode
	isDir    bool
}

func (n *treeNode) child(name string, isDir bool) *treeNode {
	if n.children == nil {
		n.children = make(map[string]*treeNode)
	}
	c, ok := n.children[name]
	if !ok {
		c = &treeNode{name: name}
		n.children[name] = c
	}
	c.isDir = c.isDir || isDir
	return c
}

// Tree renders the included files of m as a box-drawing tree headed by the
// root directory name.
func Tree(m *flatten.Manifest) string {
	root := &treeNode{name: path.Base(strings.ReplaceAll(m.Root, `\`, "/")), isDir: true}
	for _, f := range m.Files {
		if !f.Included() {
			continue
		}
		parts := strings.Split(f.Path, "/")
		n := root
		for i, p := range parts {
			n = n.child(p, i < len(parts)-1)
		}
	}

	var lines []string
	lines = append(lines, root.name+"/")
	lines = appendTree(lines, root, "")
	return strings.Join(lines, "\n") + "\n"
}

// appendTree lists n's children: directories first, then files, each group
// ordered case-insensitively.
func appendTree(lines []string, n *treeNode, prefix string) []string {
	children := make([]*treeNode, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, c)
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].isDir != children[j].isDir {
			return children[i].isDir
		}
		li, lj := strings.ToLower(children[i].name), strings.ToLower(children[j].name)
		if li != lj {
			return li < lj
		}
		return children[i].name < children[j].name
	})

	for i, c := range children {
		connector := "├── "
		extension := "│   "
		if i == len(children)-1 {
			connector = "└── "
			extension = "    "
		}
		if c.isDir {
			lines = append(lines, prefix+connector+c.name+"/")
			lines = appendTree(lines, c, prefix+extension)
		} else {
			lines = append(lines, prefix+connector+c.name)
		}
	}
	return lines
}
