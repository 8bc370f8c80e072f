package router

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// node is a node in the route tree. Static children are tried before the
// parameter child, which is tried before the catch-all.
type node struct {
	// segment is the static path segment this node matches
	segment string

	isParam    bool
	isCatchAll bool

	// paramName is the parameter name, without ":" or "*"
	paramName string

	// paramType constrains parameter values: "string", "int" or "uuid"
	paramType string

	route *Route

	children      []*node
	paramChild    *node
	catchAllChild *node
}

func newNode(segment string) *node {
	return &node{segment: segment}
}

func (n *node) findChild(segment string) *node {
	for _, child := range n.children {
		if child.segment == segment {
			return child
		}
	}
	return nil
}

func (n *node) addChild(segment string) *node {
	if child := n.findChild(segment); child != nil {
		return child
	}
	child := newNode(segment)
	n.children = append(n.children, child)
	return child
}

func (n *node) addParamChild(name, paramType string) *node {
	if n.paramChild == nil {
		n.paramChild = &node{isParam: true, paramName: name, paramType: paramType}
	}
	return n.paramChild
}

func (n *node) addCatchAllChild(name string) *node {
	if n.catchAllChild == nil {
		n.catchAllChild = &node{isCatchAll: true, paramName: name, paramType: "string"}
	}
	return n.catchAllChild
}

// insert adds pattern to the tree and returns its terminal node.
func (n *node) insert(pattern string) *node {
	current := n
	for _, seg := range splitPath(pattern) {
		switch {
		case strings.HasPrefix(seg, "*"):
			// A catch-all consumes the rest of the path.
			return current.addCatchAllChild(seg[1:])
		case strings.HasPrefix(seg, ":"):
			name, paramType := parseParamSegment(seg)
			current = current.addParamChild(name, paramType)
		default:
			current = current.addChild(seg)
		}
	}
	return current
}

// match finds the route for the decoded path segments, filling params.
func (n *node) match(segments []string, params map[string]string) *node {
	if len(segments) == 0 {
		if n.route != nil {
			return n
		}
		return nil
	}

	segment, remaining := segments[0], segments[1:]

	if child := n.findChild(segment); child != nil {
		if found := child.match(remaining, params); found != nil {
			return found
		}
	}

	if p := n.paramChild; p != nil && validParam(p.paramType, segment) {
		params[p.paramName] = segment
		if found := p.match(remaining, params); found != nil {
			return found
		}
		delete(params, p.paramName)
	}

	if c := n.catchAllChild; c != nil && c.route != nil {
		params[c.paramName] = strings.Join(segments, "/")
		return c
	}

	return nil
}

func validParam(paramType, value string) bool {
	switch paramType {
	case "int":
		_, err := strconv.ParseInt(value, 10, 64)
		return err == nil
	case "uuid":
		_, err := uuid.Parse(value)
		return err == nil
	default:
		return value != ""
	}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// parseParamSegment splits ":id" or ":id:int" into name and type.
func parseParamSegment(seg string) (name, paramType string) {
	seg = seg[1:]
	if idx := strings.Index(seg, ":"); idx != -1 {
		return seg[:idx], seg[idx+1:]
	}
	return seg, "string"
}
