package schema

// Internal model of a persisted Ubersmith schema document. Sections and methods
// keep insertion order because generation order follows it.

// Document maps section names to their methods, in insertion order.
type Document struct {
	sections []*Section
	index    map[string]int
}

// Section groups the methods sharing the first component of a dotted method name.
type Section struct {
	Name    string
	methods []*Method
	index   map[string]int
}

// Method describes a single remote method. The remote "output" shape is never kept.
type Method struct {
	Name        string
	Description string
	Parameters  []ParamDescriptor
	// Extra holds any other descriptive fields reported by the remote API.
	Extra map[string]any

	section string
}

// ParamDescriptor is a raw, not yet normalized, parameter of a method.
type ParamDescriptor struct {
	Name        string
	Required    *bool // nil when the source did not say
	Description string
	Extra       map[string]any
}

// NewParam returns a fully populated ParamDescriptor.
func NewParam(name string, required bool, description string) ParamDescriptor {
	return ParamDescriptor{Name: name, Required: &required, Description: description}
}

// IsRequired reports the required flag, treating a missing flag as false.
func (p ParamDescriptor) IsRequired() bool {
	return p.Required != nil && *p.Required
}

// New returns an empty document.
func New() *Document {
	return &Document{index: map[string]int{}}
}

// EnsureSection returns the named section, appending an empty one if needed.
func (d *Document) EnsureSection(name string) *Section {
	if d.index == nil {
		d.index = map[string]int{}
	}
	if i, ok := d.index[name]; ok {
		return d.sections[i]
	}
	s := &Section{Name: name, index: map[string]int{}}
	d.index[name] = len(d.sections)
	d.sections = append(d.sections, s)
	return s
}

// Set stores m as section.method. An existing entry is replaced in place: the
// last write wins and the position of the first insertion is kept.
func (d *Document) Set(section, method string, m *Method) {
	d.EnsureSection(section).set(method, m)
}

// Section returns the named section or nil.
func (d *Document) Section(name string) *Section {
	if d == nil || d.index == nil {
		return nil
	}
	if i, ok := d.index[name]; ok {
		return d.sections[i]
	}
	return nil
}

// Sections returns the sections in document order.
func (d *Document) Sections() []*Section {
	if d == nil {
		return nil
	}
	out := make([]*Section, len(d.sections))
	copy(out, d.sections)
	return out
}

// SectionNames returns the section names in document order.
func (d *Document) SectionNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.sections))
	for _, s := range d.sections {
		names = append(names, s.Name)
	}
	return names
}

// Len returns the number of sections.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.sections)
}

// MethodCount returns the number of methods across all sections.
func (d *Document) MethodCount() int {
	n := 0
	for _, s := range d.Sections() {
		n += s.Len()
	}
	return n
}

// Lookup returns the method stored under a dotted identifier's components.
func (d *Document) Lookup(section, method string) *Method {
	s := d.Section(section)
	if s == nil {
		return nil
	}
	return s.Method(method)
}

func (s *Section) set(name string, m *Method) {
	if s.index == nil {
		s.index = map[string]int{}
	}
	m.Name = name
	m.section = s.Name
	if i, ok := s.index[name]; ok {
		s.methods[i] = m
		return
	}
	s.index[name] = len(s.methods)
	s.methods = append(s.methods, m)
}

// Method returns the named method or nil.
func (s *Section) Method(name string) *Method {
	if s == nil || s.index == nil {
		return nil
	}
	if i, ok := s.index[name]; ok {
		return s.methods[i]
	}
	return nil
}

// Methods returns the section's methods in insertion order.
func (s *Section) Methods() []*Method {
	if s == nil {
		return nil
	}
	out := make([]*Method, len(s.methods))
	copy(out, s.methods)
	return out
}

// Len returns the number of methods in the section.
func (s *Section) Len() int {
	if s == nil {
		return 0
	}
	return len(s.methods)
}

// Section returns the name of the section the method is stored under.
func (m *Method) Section() string { return m.section }

// Dotted reconstructs the remote identifier, e.g. "client.get".
func (m *Method) Dotted() string {
	if m.section == "" {
		return m.Name
	}
	return m.section + "." + m.Name
}
