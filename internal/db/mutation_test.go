package db

import "testing"

func TestMutationKind_String(t *testing.T) {
	tests := []struct {
		kind MutationKind
		want string
	}{
		{MutDel, "DEL"},
		{MutHSet, "HSET"},
		{MutHDel, "HDEL"},
		{MutSet, "SET"},
		{MutSAdd, "SADD"},
		{MutSRem, "SREM"},
		{MutZAdd, "ZADD"},
		{MutZRem, "ZREM"},
		{MutationKind(99), "UNKNOWN"},
	}
	for _, tc := range tests {
		if got := tc.kind.String(); got != tc.want {
			t.Errorf("MutationKind(%d).String() = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestMutation_IsNoop(t *testing.T) {
	tests := []struct {
		name string
		m    Mutation
		want bool
	}{
		{"del with key", DelKey("k"), false},
		{"del without key", DelKey(""), true},
		{"hset empty", HSetFields("k", nil), true},
		{"hset fields", HSetFields("k", map[string]string{"a": "1"}), false},
		{"hdel empty", HDelFields("k"), true},
		{"sadd members", SAddMembers("k", "a"), false},
		{"srem empty", SRemMembers("k"), true},
		{"zadd member", ZAddMember("k", 1, "a"), false},
		{"zrem empty", ZRemMembers("k"), true},
		{"set value", SetValue("k", "v"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.m.IsNoop(); got != tc.want {
				t.Errorf("IsNoop() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestZAddMember_CarriesScore(t *testing.T) {
	m := ZAddMember("idx", 0.75, "m1")
	if m.Score != 0.75 || len(m.Members) != 1 || m.Members[0] != "m1" {
		t.Errorf("unexpected mutation: %+v", m)
	}
}
