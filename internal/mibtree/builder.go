package mibtree

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/geekxflood/common/logging"
)

//go:embed mibs/*.mib
var mibFS embed.FS

// Grammar of the device description documents. Every declaration is
// terminated by an explicit numeric address assignment of the form
// "::= { <parent-name> <integer> }".
var (
	moduleIdentityRE   = regexp.MustCompile(`^(\w+) +MODULE-IDENTITY$`)
	objectIdentifierRE = regexp.MustCompile(`^(\w+) +OBJECT IDENTIFIER +::= \{ ?(\w+) +(\d+) ?\}$`)
	objectTypeRE       = regexp.MustCompile(`^(\w+) OBJECT-TYPE$`)
	oidAssignmentRE    = regexp.MustCompile(`^::= ?\{ ?(\w+) +(\d+) ? ?\}$`)
	indexRE            = regexp.MustCompile(`INDEX +\{ ?([\w, ]+) ?\}`)
)

// Some vendor documents declare their roots under vendor-specific names.
// These are mapped to the canonical device family names.
var nameAliases = map[string]string{
	"schneiderElectric": "schneiderPm5xxx",
	"synaccess":         "netbooter",
	"xupsMIB":           "xups",
}

type pendingModule struct {
	name string
	oid  string
}

type builder struct {
	logger  logging.Logger
	tree    *Tree
	pending map[string]pendingModule

	file    string
	lines   []string
	lineNum int
}

// Build parses the embedded device description documents, in file name order,
// into a single merged tree. Building is deterministic: the same documents
// always yield the same tree. A document entry whose parent is never declared
// is a configuration defect and fails the build.
func Build(logger logging.Logger) (*Tree, error) {
	b := &builder{
		logger:  logger,
		tree:    newScaffold(),
		pending: make(map[string]pendingModule),
	}

	entries, err := mibFS.ReadDir("mibs")
	if err != nil {
		return nil, fmt.Errorf("reading embedded device descriptions: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := mibFS.ReadFile("mibs/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if err := b.parseDocument(name, string(content)); err != nil {
			return nil, err
		}
	}

	if len(b.pending) > 0 {
		parents := make([]string, 0, len(b.pending))
		for p := range b.pending {
			parents = append(parents, p)
		}
		sort.Strings(parents)
		return nil, fmt.Errorf("unresolved module parents after parsing: %s", strings.Join(parents, ", "))
	}

	return b.tree, nil
}

func (b *builder) parseDocument(name, content string) error {
	b.logger.Debug("Processing device description", "file", name)
	b.file = name
	b.lines = strings.Split(content, "\n")

	for b.lineNum = 0; b.lineNum < len(b.lines); b.lineNum++ {
		line := strings.TrimSpace(b.lines[b.lineNum])
		if m := moduleIdentityRE.FindStringSubmatch(line); m != nil {
			if err := b.processModuleIdentity(m[1]); err != nil {
				return err
			}
		} else if m := objectIdentifierRE.FindStringSubmatch(line); m != nil {
			if err := b.processObjectIdentifier(m[1], m[2], m[3]); err != nil {
				return err
			}
		} else if m := objectTypeRE.FindStringSubmatch(line); m != nil {
			if err := b.processObjectType(m[1]); err != nil {
				return err
			}
		}
	}
	return nil
}

// advance moves to the next line, failing when the document ends before the
// expected terminator is found.
func (b *builder) advance() (string, error) {
	b.lineNum++
	if b.lineNum >= len(b.lines) {
		return "", fmt.Errorf("%s: unexpected end of document at line %d", b.file, b.lineNum)
	}
	return strings.TrimSpace(b.lines[b.lineNum]), nil
}

// processModuleIdentity handles a MODULE-IDENTITY declaration. The address
// assignment may be several lines further down. If the declared parent does
// not exist yet, the module is deferred until the parent is declared.
func (b *builder) processModuleIdentity(rawName string) error {
	name := canonicalName(rawName)

	line := strings.TrimSpace(b.lines[b.lineNum])
	m := oidAssignmentRE.FindStringSubmatch(line)
	for m == nil {
		var err error
		if line, err = b.advance(); err != nil {
			return err
		}
		m = oidAssignmentRE.FindStringSubmatch(line)
	}

	parentName := canonicalName(m[1])
	oid := m[2]
	if parent, ok := b.tree.nodes[parentName]; ok {
		b.tree.add(&Node{
			Name:        name,
			Description: name,
			OID:         parent.OID + "." + oid,
			Parent:      parent,
			Kind:        Branch,
		})
	} else {
		b.pending[parentName] = pendingModule{name: name, oid: oid}
	}
	return nil
}

// processObjectIdentifier handles a single line OBJECT IDENTIFIER
// declaration. If a deferred module was waiting on this node as parent, it is
// attached as well.
func (b *builder) processObjectIdentifier(rawName, rawParent, oid string) error {
	name := canonicalName(rawName)
	parentName := canonicalName(rawParent)
	parent, ok := b.tree.nodes[parentName]
	if !ok {
		return fmt.Errorf("%s: no parent %q for object identifier %q", b.file, parentName, name)
	}
	b.tree.add(&Node{
		Name:        name,
		Description: name,
		OID:         parent.OID + "." + oid,
		Parent:      parent,
		Kind:        Branch,
	})

	if p, ok := b.pending[name]; ok {
		parent := b.tree.nodes[name]
		b.tree.add(&Node{
			Name:        p.name,
			Description: p.name,
			OID:         parent.OID + "." + p.oid,
			Parent:      parent,
			Kind:        Branch,
		})
		delete(b.pending, name)
	}
	return nil
}

// processObjectType handles an OBJECT-TYPE declaration: description text is
// collected up to the index clause or terminal address assignment, and an
// INDEX clause marks the leaf as a per-row telemetry item. The declared
// parent must already exist.
func (b *builder) processObjectType(name string) error {
	line := strings.TrimSpace(b.lines[b.lineNum])

	var err error
	for !strings.Contains(line, "DESCRIPTION") {
		if line, err = b.advance(); err != nil {
			return err
		}
	}
	var description strings.Builder
	for !strings.Contains(line, "::=") && !strings.Contains(line, "INDEX ") {
		description.WriteString(strings.TrimSpace(strings.ReplaceAll(line, "DESCRIPTION", "")))
		if description.Len() > 0 {
			description.WriteByte(' ')
		}
		if line, err = b.advance(); err != nil {
			return err
		}
	}
	descr := strings.TrimSpace(strings.ReplaceAll(collapseSpaces(description.String()), `"`, ""))

	index := ""
	if strings.Contains(line, "INDEX ") {
		if m := indexRE.FindStringSubmatch(line); m != nil {
			index = m[1]
			if line, err = b.advance(); err != nil {
				return err
			}
		}
	}

	m := oidAssignmentRE.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("%s: missing address assignment for object type %q near line %d", b.file, name, b.lineNum+1)
	}
	parent, ok := b.tree.nodes[m[1]]
	if !ok {
		return fmt.Errorf("%s: no parent %q for object type %q", b.file, m[1], name)
	}
	b.tree.add(&Node{
		Name:        name,
		Description: descr,
		OID:         parent.OID + "." + m[2],
		Parent:      parent,
		Kind:        Leaf,
		Index:       index,
	})
	return nil
}

func canonicalName(name string) string {
	if alias, ok := nameAliases[name]; ok {
		return alias
	}
	return name
}

var multiSpaceRE = regexp.MustCompile(` +`)

func collapseSpaces(s string) string {
	return multiSpaceRE.ReplaceAllString(s, " ")
}
