package regview

// ValueKind mirrors the registry value types the scrubber reads and writes.
type ValueKind int

const (
	String ValueKind = iota + 1
	ExpandString
	MultiString
	DWord
	QWord
	Binary
)

func (k ValueKind) String() string {
	switch k {
	case String:
		return "REG_SZ"
	case ExpandString:
		return "REG_EXPAND_SZ"
	case MultiString:
		return "REG_MULTI_SZ"
	case DWord:
		return "REG_DWORD"
	case QWord:
		return "REG_QWORD"
	case Binary:
		return "REG_BINARY"
	default:
		return "REG_NONE"
	}
}

// Value is a typed registry value. Only the field matching Kind is meaningful.
type Value struct {
	Kind    ValueKind
	String  string
	Strings []string
	Integer uint64
	Binary  []byte
}

// StringValue builds a REG_SZ value.
func StringValue(s string) Value { return Value{Kind: String, String: s} }

// MultiStringValue builds a REG_MULTI_SZ value.
func MultiStringValue(ss []string) Value {
	return Value{Kind: MultiString, Strings: append([]string(nil), ss...)}
}

// DWordValue builds a REG_DWORD value.
func DWordValue(n uint32) Value { return Value{Kind: DWord, Integer: uint64(n)} }

func (v Value) clone() Value {
	out := v
	if v.Strings != nil {
		out.Strings = append([]string(nil), v.Strings...)
	}
	if v.Binary != nil {
		out.Binary = append([]byte(nil), v.Binary...)
	}
	return out
}
