package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

/*

User is a registered account.

Id: primary key, assigned by the identity provider at registration
Email: unique login email
DisplayName: name shown to other users
Friends: directed adjacency list of user ids, stored as a JSON array. A
	listing B does not imply B lists A. The list is set once at registration
	and never mutated afterwards.
CreatedAt: time when entity is created

*/
type User struct {
	Id          string         `gorm:"primaryKey" json:"id"`
	Email       string         `gorm:"uniqueIndex" json:"email"`
	DisplayName string         `json:"displayName"`
	Friends     datatypes.JSON `json:"friends"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// FriendIds decodes the stored adjacency list. A missing or malformed list
// decodes to empty rather than failing the caller.
func (u *User) FriendIds() []string {
	if len(u.Friends) == 0 {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal(u.Friends, &ids); err != nil {
		return []string{}
	}
	return ids
}

// SetFriendIds encodes the adjacency list for storage.
func (u *User) SetFriendIds(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	u.Friends = datatypes.JSON(data)
	return nil
}
