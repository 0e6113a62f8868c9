package models

import (
	"encoding/json"
	"time"
)

// MatchStatus is the lifecycle state of a match. Transitions are monotonic:
// waiting -> ongoing -> finished|aborted.
type MatchStatus string

const (
	StatusWaiting  MatchStatus = "waiting"
	StatusOngoing  MatchStatus = "ongoing"
	StatusFinished MatchStatus = "finished"
	StatusAborted  MatchStatus = "aborted"
)

// MatchResult is the winning side of a finished match.
type MatchResult string

const (
	ResultWhite MatchResult = "white"
	ResultBlack MatchResult = "black"
	ResultDraw  MatchResult = "draw"
	ResultNone  MatchResult = "none"
)

// MatchReason records why a match ended.
type MatchReason string

const (
	ReasonNormal    MatchReason = "normal"
	ReasonResign    MatchReason = "resign"
	ReasonTimeout   MatchReason = "timeout"
	ReasonAgreement MatchReason = "agreement"
	ReasonAbandon   MatchReason = "abandon"
	ReasonNone      MatchReason = "none"
)

// User represents a platform player account
type User struct {
	UserID       int64      `gorm:"column:userid;primaryKey;autoIncrement" json:"userid"`
	Email        string     `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Username     string     `gorm:"column:username;type:varchar(30);uniqueIndex;not null" json:"username"`
	Name         string     `gorm:"column:name;type:varchar(50);not null" json:"name"`
	Surname      string     `gorm:"column:surname;type:varchar(50);not null" json:"surname"`
	PasswordHash string     `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	Birthdate    *time.Time `gorm:"column:birthdate;type:date" json:"birthdate,omitempty"`
	Country      string     `gorm:"column:country;type:varchar(56)" json:"country,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// AuthToken represents a stored refresh token; rotated on every refresh
type AuthToken struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"column:userid;not null;index:idx_auth_tokens_userid" json:"userid"`
	RefreshToken string    `gorm:"column:refresh_token;type:varchar(512);uniqueIndex;not null" json:"-"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for AuthToken model
func (AuthToken) TableName() string {
	return "auth_tokens"
}

// Match represents one checkers match. User slots are nullable while the
// match is waiting for an opponent.
type Match struct {
	MatchID    int64       `gorm:"column:matchid;primaryKey;autoIncrement" json:"matchid"`
	StartedAt  time.Time   `gorm:"column:started_at;autoCreateTime" json:"started_at"`
	FinishedAt *time.Time  `gorm:"column:finished_at" json:"finished_at,omitempty"`
	WhiteUser  *int64      `gorm:"column:whiteuser;index:idx_matches_whiteuser" json:"whiteuser"`
	BlackUser  *int64      `gorm:"column:blackuser;index:idx_matches_blackuser" json:"blackuser"`
	Result     MatchResult `gorm:"column:result;type:varchar(5);default:none;not null" json:"result"`
	Reason     MatchReason `gorm:"column:reason;type:varchar(9);default:none;not null" json:"reason"`
	Status     MatchStatus `gorm:"column:status;type:varchar(8);default:waiting;not null;index:idx_matches_status" json:"status"`
}

// TableName specifies the table name for Match model
func (Match) TableName() string {
	return "matches"
}

// HasUser reports whether the user occupies either slot of the match.
func (m *Match) HasUser(userID int64) bool {
	if m.WhiteUser != nil && *m.WhiteUser == userID {
		return true
	}
	return m.BlackUser != nil && *m.BlackUser == userID
}

// RoleOf returns "white" or "black" for a participant, or "" for anyone else.
func (m *Match) RoleOf(userID int64) string {
	if m.WhiteUser != nil && *m.WhiteUser == userID {
		return "white"
	}
	if m.BlackUser != nil && *m.BlackUser == userID {
		return "black"
	}
	return ""
}

// MatchMove is one immutable entry of a match's move log. Move holds the
// JSON document {from, to, was_capture}.
type MatchMove struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MatchID    int64           `gorm:"column:matchid;not null;uniqueIndex:uq_match_move_number;index:idx_match_moves_matchid" json:"matchid"`
	MoveNumber int             `gorm:"column:move_number;not null;uniqueIndex:uq_match_move_number" json:"move_number"`
	Player     string          `gorm:"column:player;type:varchar(5);not null" json:"player"`
	Move       json.RawMessage `gorm:"column:move;type:json;not null" json:"move"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for MatchMove model
func (MatchMove) TableName() string {
	return "match_moves"
}

// MatchSummary is a match row joined with its move count, for history listings.
type MatchSummary struct {
	MatchID    int64       `gorm:"column:matchid" json:"matchid"`
	StartedAt  time.Time   `gorm:"column:started_at" json:"started_at"`
	FinishedAt *time.Time  `gorm:"column:finished_at" json:"finished_at,omitempty"`
	WhiteUser  *int64      `gorm:"column:whiteuser" json:"whiteuser"`
	BlackUser  *int64      `gorm:"column:blackuser" json:"blackuser"`
	Result     MatchResult `gorm:"column:result" json:"result"`
	Reason     MatchReason `gorm:"column:reason" json:"reason"`
	Status     MatchStatus `gorm:"column:status" json:"status"`
	MovesCount int64       `gorm:"column:moves_count" json:"moves_count"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Password  string `json:"password"`
	Birthdate string `json:"birthdate"`
	Country   string `json:"country"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}
