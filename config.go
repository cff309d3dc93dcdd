package c5

import "fmt"

// Config is a string-keyed bag of typed settings: include search
// paths, diagnostic limits, and codegen toggles. It is a flat map
// rather than a struct. The driver hands it to the Analyzer, which
// stores it; no stage reads its keys, and the driver overlays no
// CLI-provided values (include directories from -I travel in
// CompileOptions.IncludeDirs instead).
type Config map[string]*cfgVal

// NewConfig creates a configuration object primed with every default
// value the pipeline expects to find.
func NewConfig() *Config {
	m := make(Config)
	m.SetBool("compiler.emit_comments", true)
	m.SetInt("compiler.frame_align", 16)
	m.SetInt("parser.max_errors", 50)
	m.SetString("codegen.target", "x86_64-linux-gas")
	m.SetStrings("include.paths", nil)
	return &m
}

type cfgValType int

const (
	cfgValType_Undefined cfgValType = iota
	cfgValType_Bool
	cfgValType_Int
	cfgValType_String
	cfgValType_Strings
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValType_Undefined: "undefined",
		cfgValType_Bool:      "bool",
		cfgValType_Int:       "int",
		cfgValType_String:    "string",
		cfgValType_Strings:   "strings",
	}[vt]
}

type cfgVal struct {
	typ        cfgValType
	asBool     bool
	asInt      int
	asString   string
	asStrings  []string
}

// assignType prevents a setting from changing type across writes,
// which would almost always be a programming error at a call site.
func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValType_Undefined {
		panic(fmt.Sprintf("Can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("Can't retrieve `%s` from `%s` variable", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Bool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Int)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_String)
	(*c)[path].asString = v
}

func (c *Config) SetStrings(path string, v []string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Strings)
	(*c)[path].asStrings = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Bool)
		return val.asBool
	}
	panic(fmt.Sprintf("Bool setting `%s` does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Int)
		return val.asInt
	}
	panic(fmt.Sprintf("Int setting `%s` does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_String)
		return val.asString
	}
	panic(fmt.Sprintf("String setting `%s` does not exist", path))
}

func (c *Config) GetStrings(path string) []string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Strings)
		return val.asStrings
	}
	panic(fmt.Sprintf("Strings setting `%s` does not exist", path))
}
