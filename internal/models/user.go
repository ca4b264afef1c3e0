package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// UserID identifies a remote Telegram account
type UserID int64

// String returns the decimal form of the id
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseUserID parses a decimal user id, as typed on the command line
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return UserID(v), nil
}

// ParseUserIDs parses every argument, failing on the first invalid one
func ParseUserIDs(args []string) ([]UserID, error) {
	ids := make([]UserID, 0, len(args))
	for _, arg := range args {
		id, err := ParseUserID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SortUserIDs sorts ids in ascending order in place
func SortUserIDs(ids []UserID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
