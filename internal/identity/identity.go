// Package identity canonicalizes the loosely-typed user and conversation ids
// that arrive from clients and collaborators. Nothing past this boundary
// handles raw id values.
package identity

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// UserID is a canonical user identifier. The zero value means "absent".
type UserID string

func (u UserID) String() string { return string(u) }

func (u UserID) IsZero() bool { return u == "" }

const (
	PairSeparator = "_"
	TeamPrefix    = "team:"
	GroupPrefix   = "group:"
)

// Kind mirrors the conversation kinds an id can be derived for.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
	KindTeam   Kind = "team"
)

// Storage ids never contain the pair separator or the prefix colon, which keeps
// pair, group and team ids mutually exclusive.
var storageIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ToStorageID validates a loosely-typed id. It returns ok=false instead of an
// error for anything that cannot be a storage id.
func ToStorageID(v any) (UserID, bool) {
	raw, ok := Normalize(v)
	if !ok {
		return "", false
	}
	if parsed, err := uuid.Parse(string(raw)); err == nil {
		return UserID(parsed.String()), true
	}
	if !storageIDPattern.MatchString(string(raw)) {
		return "", false
	}
	return raw, true
}

// Normalize coerces any id-like value into a trimmed string form. It accepts
// strings, uuids, fmt.Stringer values, pointers to those, and maps carrying
// an "id" or "_id" key.
func Normalize(v any) (UserID, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case UserID:
		s = string(t)
	case string:
		s = t
	case *string:
		if t == nil {
			return "", false
		}
		s = *t
	case uuid.UUID:
		if t == uuid.Nil {
			return "", false
		}
		s = t.String()
	case *uuid.UUID:
		if t == nil || *t == uuid.Nil {
			return "", false
		}
		s = t.String()
	case map[string]any:
		if id, ok := t["id"]; ok {
			return Normalize(id)
		}
		if id, ok := t["_id"]; ok {
			return Normalize(id)
		}
		return "", false
	case fmt.Stringer:
		s = t.String()
	case float64:
		if t != float64(int64(t)) {
			return "", false
		}
		s = fmt.Sprintf("%d", int64(t))
	case int:
		s = fmt.Sprintf("%d", t)
	case int64:
		s = fmt.Sprintf("%d", t)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "undefined" {
		return "", false
	}
	return UserID(s), true
}

// PairConversationID derives the direct conversation id for two users. The
// result does not depend on argument order.
func PairConversationID(a, b any) (string, bool) {
	left, ok := ToStorageID(a)
	if !ok {
		return "", false
	}
	right, ok := ToStorageID(b)
	if !ok {
		return "", false
	}
	ids := []string{string(left), string(right)}
	sort.Strings(ids)
	return strings.Join(ids, PairSeparator), true
}

// PairMembers splits a direct conversation id back into its two users.
func PairMembers(conversationID string) (UserID, UserID, bool) {
	parts := strings.Split(conversationID, PairSeparator)
	if len(parts) != 2 {
		return "", "", false
	}
	a, okA := ToStorageID(parts[0])
	b, okB := ToStorageID(parts[1])
	if !okA || !okB {
		return "", "", false
	}
	return a, b, true
}

func TeamConversationID(teamID string) string {
	return TeamPrefix + teamID
}

// TeamIDFromConversation returns the owning team id of a team conversation.
func TeamIDFromConversation(conversationID string) (string, bool) {
	if !strings.HasPrefix(conversationID, TeamPrefix) {
		return "", false
	}
	teamID := strings.TrimPrefix(conversationID, TeamPrefix)
	return teamID, teamID != ""
}

func NewGroupConversationID() string {
	return GroupPrefix + uuid.NewString()
}

// KindOf classifies a conversation id by its derivation scheme.
func KindOf(conversationID string) (Kind, bool) {
	switch {
	case strings.HasPrefix(conversationID, TeamPrefix) && len(conversationID) > len(TeamPrefix):
		return KindTeam, true
	case strings.HasPrefix(conversationID, GroupPrefix) && len(conversationID) > len(GroupPrefix):
		return KindGroup, true
	}
	if _, _, ok := PairMembers(conversationID); ok {
		return KindDirect, true
	}
	return "", false
}

// NormalizeSet canonicalizes, de-duplicates and sorts a list of ids. Entries
// that do not normalize are returned separately.
func NormalizeSet(values []any) (ids []UserID, invalid []any) {
	for _, v := range values {
		id, ok := ToStorageID(v)
		if !ok {
			invalid = append(invalid, v)
			continue
		}
		ids = append(ids, id)
	}
	ids = lo.Uniq(ids)
	SortIDs(ids)
	return ids, invalid
}

func SortIDs(ids []UserID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// SameSet reports whether two id lists hold exactly the same members.
func SameSet(a, b []UserID) bool {
	if len(a) != len(b) {
		return false
	}
	left := append([]UserID(nil), a...)
	right := append([]UserID(nil), b...)
	SortIDs(left)
	SortIDs(right)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

// MemberKey is the canonical string form of a member set, used for exact
// set lookups in storage.
func MemberKey(ids []UserID) string {
	sorted := append([]UserID(nil), ids...)
	SortIDs(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func Strings(ids []UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
