package db

// MutationKind identifies a write command inside an atomic group.
type MutationKind int

// Supported mutation kinds.
const (
	MutDel MutationKind = iota
	MutHSet
	MutHDel
	MutSet
	MutSAdd
	MutSRem
	MutZAdd
	MutZRem
)

// String returns the command name of the mutation.
func (k MutationKind) String() string {
	switch k {
	case MutDel:
		return OpDel
	case MutHSet:
		return OpHSet
	case MutHDel:
		return OpHDel
	case MutSet:
		return OpSet
	case MutSAdd:
		return OpSAdd
	case MutSRem:
		return OpSRem
	case MutZAdd:
		return OpZAdd
	case MutZRem:
		return OpZRem
	default:
		return "UNKNOWN"
	}
}

// Mutation is a single write applied inside Transactor.Atomic.
// Build values with the constructors below rather than by hand.
type Mutation struct {
	Kind    MutationKind
	Key     string
	Fields  map[string]string
	Members []string
	Score   float64
	Value   string
}

// DelKey deletes key.
func DelKey(key string) Mutation {
	return Mutation{Kind: MutDel, Key: key}
}

// HSetFields sets hash fields on key.
func HSetFields(key string, fields map[string]string) Mutation {
	return Mutation{Kind: MutHSet, Key: key, Fields: fields}
}

// HDelFields removes hash fields from key.
func HDelFields(key string, fields ...string) Mutation {
	return Mutation{Kind: MutHDel, Key: key, Members: fields}
}

// SetValue stores a plain string value.
func SetValue(key, value string) Mutation {
	return Mutation{Kind: MutSet, Key: key, Value: value}
}

// SAddMembers adds members to a set.
func SAddMembers(key string, members ...string) Mutation {
	return Mutation{Kind: MutSAdd, Key: key, Members: members}
}

// SRemMembers removes members from a set.
func SRemMembers(key string, members ...string) Mutation {
	return Mutation{Kind: MutSRem, Key: key, Members: members}
}

// ZAddMember adds a member with score to a sorted set.
func ZAddMember(key string, score float64, member string) Mutation {
	return Mutation{Kind: MutZAdd, Key: key, Score: score, Members: []string{member}}
}

// ZRemMembers removes members from a sorted set.
func ZRemMembers(key string, members ...string) Mutation {
	return Mutation{Kind: MutZRem, Key: key, Members: members}
}

// IsNoop reports whether the mutation would send an empty command.
func (m Mutation) IsNoop() bool {
	switch m.Kind {
	case MutHSet:
		return len(m.Fields) == 0
	case MutHDel, MutSAdd, MutSRem, MutZAdd, MutZRem:
		return len(m.Members) == 0
	default:
		return m.Key == ""
	}
}
