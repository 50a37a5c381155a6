package queries

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Question struct {
	QuestionID  int64    `json:"question_id"`
	Kind        string   `json:"kind"`
	Level       int32    `json:"level"`
	Category    string   `json:"category"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
	Rubric      string   `json:"rubric"`
	UsageCount  int64    `json:"usage_count"`
}

type PlayerRating struct {
	PlayerID  pgtype.UUID        `json:"player_id"`
	Rating    int32              `json:"rating"`
	Games     int32              `json:"games"`
	Wins      int32              `json:"wins"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}
