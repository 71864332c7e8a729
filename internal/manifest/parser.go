package manifest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"camsync/internal/domain"
	"camsync/internal/pathclass"
)

// FileName is the manifest expected at the top level of a settings archive.
const FileName = "XSREGISTER.XML"

// DatabaseScope is the scope recorded for every database reference.
const DatabaseScope = "global"

// walkState is shared by the matchers during one walk.
type walkState struct {
	cfg        *domain.Configuration
	adminDepth int
	userDepth  int
}

func (s *walkState) inAdmin() bool { return s.adminDepth > 0 }
func (s *walkState) inUser() bool  { return s.userDepth > 0 }

// matcher recognises one known element shape. It returns false when the node
// is not applicable; it never fails.
type matcher interface {
	match(n *Node, s *walkState) bool
}

type matcherFunc func(n *Node, s *walkState) bool

func (f matcherFunc) match(n *Node, s *walkState) bool { return f(n, s) }

// Parser walks a manifest tree with a fixed set of shape matchers.
type Parser struct {
	matchers []matcher
}

// NewParser returns a Parser with the standard matchers.
func NewParser() *Parser {
	return &Parser{matchers: []matcher{
		matcherFunc(matchSetting),
		matcherFunc(matchUserEntry),
		matcherFunc(matchMachine),
		matcherFunc(matchDatabase),
		matcherFunc(collectPaths),
	}}
}

// Parse is NewParser().Parse.
func Parse(data []byte) (*domain.Configuration, error) {
	return NewParser().Parse(data)
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (*domain.Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.E(domain.KindManifestMissing, "parse manifest", path, err)
		}
		return nil, domain.E(domain.KindIO, "parse manifest", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.E(domain.KindIO, "parse manifest", path, err)
	}
	return Parse(data)
}

// Parse builds a Configuration from manifest XML. Only a malformed document
// or a missing version root is an error; unknown elements are skipped.
func (p *Parser) Parse(data []byte) (*domain.Configuration, error) {
	root, err := buildTree(data)
	if err != nil {
		return nil, domain.E(domain.KindInvalidFormat, "parse manifest", "", err)
	}

	version, err := parseVersion(root)
	if err != nil {
		return nil, domain.E(domain.KindInvalidFormat, "parse manifest", "", err)
	}

	cfg := domain.NewConfiguration()
	cfg.Version = version

	p.walk(root, &walkState{cfg: cfg})
	return cfg, nil
}

func (p *Parser) walk(n *Node, s *walkState) {
	admin := n.Is("ADMINSETTINGS", "ADMIN_SETTINGS", "ADMINISTRATORSETTINGS")
	user := n.Is("USERSETTINGS", "USER_SETTINGS")
	if admin {
		s.adminDepth++
	}
	if user {
		s.userDepth++
	}

	for _, m := range p.matchers {
		m.match(n, s)
	}
	for _, child := range n.Children {
		p.walk(child, s)
	}

	if admin {
		s.adminDepth--
	}
	if user {
		s.userDepth--
	}
}

func parseVersion(root *Node) (domain.Version, error) {
	major, ok := root.Attr("major")
	if !ok {
		return domain.Version{}, fmt.Errorf("root element <%s> carries no version", root.Name)
	}
	major = strings.TrimSpace(major)
	if major == "" {
		return domain.Version{}, fmt.Errorf("root element <%s> has an empty major version", root.Name)
	}
	return domain.Version{
		Name:  root.AttrOr(root.Name, "name", "product"),
		Major: major,
		Minor: strings.TrimSpace(root.AttrOr("", "minor")),
	}, nil
}

// matchSetting records registry-style entries: any element carrying both a
// key and a value, wherever it appears outside the user settings.
func matchSetting(n *Node, s *walkState) bool {
	if s.inUser() {
		return false
	}
	key, hasKey := n.Attr("key", "name")
	value, hasValue := n.Attr("value")
	if !hasKey || !hasValue || key == "" {
		return false
	}
	if !s.inAdmin() && !pathclass.IsLikelyPath(value) && !strings.Contains(value, "[") {
		return false
	}

	entry := domain.SharedPath{
		Value:        value,
		Default:      n.AttrOr("", "default"),
		RegistryPath: n.AttrOr("", "registry", "registryPath"),
	}
	if entry.RegistryPath == "" && n.Parent != nil {
		entry.RegistryPath = n.Parent.Path() + "/" + key
	}
	s.cfg.Paths.Shared[key] = entry
	if strings.Contains(strings.ToLower(key), "company") {
		s.cfg.Paths.Company[key] = entry
	}
	return true
}

// matchUserEntry records DIRECTORY and FILE entries inside the user settings.
func matchUserEntry(n *Node, s *walkState) bool {
	if !s.inUser() {
		return false
	}
	isDir := n.Is("DIRECTORY", "USERDIRECTORY", "DIR")
	isFile := n.Is("FILE", "USERFILE")
	if !isDir && !isFile {
		return false
	}
	key, ok := n.Attr("key", "name")
	if !ok {
		return false
	}
	path, ok := n.Attr("path", "value")
	if !ok {
		path = n.Text
	}
	if path == "" {
		return false
	}

	entry := domain.UserEntry{Key: key, Path: path}
	if isDir {
		s.cfg.UserSettings.UserDirectories = append(s.cfg.UserSettings.UserDirectories, entry)
	} else {
		s.cfg.UserSettings.UserFiles = append(s.cfg.UserSettings.UserFiles, entry)
	}
	s.cfg.Paths.User[key] = domain.SharedPath{Value: path, RegistryPath: n.Path()}
	return true
}

func matchMachine(n *Node, s *walkState) bool {
	if !n.Is("MACHINE", "MACHINEDEFINITION") {
		return false
	}
	name, ok := n.Attr("name")
	if !ok {
		return false
	}
	s.cfg.Machines = append(s.cfg.Machines, domain.Machine{
		Name:          name,
		MDFPath:       n.AttrOr("", "mdf", "mdfPath", "mdffile"),
		PostProcessor: n.AttrOr("", "postprocessor", "postProcessor", "pp"),
		MachineModel:  n.AttrOr("", "model", "machineModel"),
	})
	return true
}

func matchDatabase(n *Node, s *walkState) bool {
	var kind string
	switch {
	case n.Is("TOOLDATABASE", "TOOLDB"):
		kind = "tool"
	case n.Is("MACRODATABASE", "MACRODB"):
		kind = "macro"
	case n.Is("DATABASEPROJECT", "DBPROJECT"):
		kind = strings.ToLower(n.AttrOr("", "type", "kind"))
	default:
		return false
	}
	path, ok := n.Attr("path", "file", "value")
	if !ok {
		path = n.Text
	}
	if path == "" {
		return false
	}

	ref := domain.DatabaseRef{Path: path, Type: DatabaseScope}
	switch kind {
	case "tool":
		s.cfg.Databases.Tool = append(s.cfg.Databases.Tool, ref)
	case "macro":
		s.cfg.Databases.Macro = append(s.cfg.Databases.Macro, ref)
	default:
		return false
	}
	return true
}

// collectPaths mirrors every network path into NetworkShares and every
// automation path into AutomationPaths. It is additive: the same value may
// also have been recorded by another matcher.
func collectPaths(n *Node, s *walkState) bool {
	owner := n.AttrOr(n.Name, "key", "name")
	matched := false

	check := func(value string) {
		templated := strings.HasPrefix(value, "[")
		if !templated && !pathclass.IsLikelyPath(value) {
			return
		}
		if pathclass.IsNetworkPath(value) {
			s.cfg.NetworkShares = append(s.cfg.NetworkShares, domain.NamedPath{Name: owner, Path: value})
			matched = true
		}
		if strings.Contains(owner, "Automation") {
			s.cfg.AutomationPaths = append(s.cfg.AutomationPaths, domain.NamedPath{Name: owner, Path: value})
			matched = true
		}
	}

	for _, a := range n.Attrs {
		check(a.Value)
	}
	if n.Text != "" {
		check(n.Text)
	}
	return matched
}
