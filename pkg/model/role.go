package model

import "time"

// RoleLevel is the privilege tier of a role.
type RoleLevel string

const (
	LevelOwner    RoleLevel = "owner"
	LevelAdmin    RoleLevel = "admin"
	LevelMember   RoleLevel = "member"
	LevelFollower RoleLevel = "follower"
)

var levelRank = map[RoleLevel]int{
	LevelOwner:    4,
	LevelAdmin:    3,
	LevelMember:   2,
	LevelFollower: 1,
}

// Rank orders levels owner > admin > member > follower. Unknown levels rank 0.
func (l RoleLevel) Rank() int {
	return levelRank[l]
}

func (l RoleLevel) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// Outranks reports whether l is strictly more privileged than other.
func (l RoleLevel) Outranks(other RoleLevel) bool {
	return l.Rank() > other.Rank()
}

// Role is a named privilege tier. Roles are provisioned out of band.
type Role struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Level     RoleLevel `gorm:"column:level;not null" json:"level"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Role) TableName() string {
	return "roles"
}
